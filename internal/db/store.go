package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oatsaysai/debt-reminder/internal/models"
)

const dateLayout = "2006-01-02"

// Store gives typed access to users, debts and reminders
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindUnpaidDebtsDueOn returns unpaid debts whose due date falls on the
// calendar day of date, evaluated in date's location.
func (s *Store) FindUnpaidDebtsDueOn(ctx context.Context, date time.Time) ([]models.Debt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, amount, due_date, status, COALESCE(description, ''), created_at, updated_at
		FROM debts
		WHERE status = $1
		  AND (due_date AT TIME ZONE $2)::date = $3::date
		ORDER BY id`,
		string(models.DebtUnpaid), date.Location().String(), date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("error querying debts due on %s: %w", date.Format(dateLayout), err)
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		var d models.Debt
		var status string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Amount, &d.DueDate, &status, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning debt row: %w", err)
		}
		d.Status = models.DebtStatus(status)
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debt rows: %w", err)
	}
	return debts, nil
}

// FindReminder returns the most recent reminder for (debtID, kind). When
// statuses are given only records with one of those outcomes match.
func (s *Store) FindReminder(ctx context.Context, debtID int, kind string, statuses ...models.ReminderStatus) (*models.Reminder, error) {
	query := `
		SELECT id, debt_id, user_id, reminder_type, sent_at, status, created_at
		FROM reminders
		WHERE debt_id = $1 AND reminder_type = $2`
	args := []any{debtID, kind}
	if len(statuses) > 0 {
		filter := make([]string, len(statuses))
		for i, st := range statuses {
			filter[i] = string(st)
		}
		query += ` AND status = ANY($3)`
		args = append(args, filter)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var r models.Reminder
	var status string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&r.ID, &r.DebtID, &r.UserID, &r.Kind, &r.SentAt, &status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying reminder for debt %d kind %s: %w", debtID, kind, err)
	}
	r.Status = models.ReminderStatus(status)
	return &r, nil
}

// FindUser fetches a user by database ID
func (s *Store) FindUser(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, external_handle, name, is_verified, COALESCE(bpjs_number, ''), created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.ExternalHandle, &u.Name, &u.IsVerified, &u.DomainID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user %d: %w", id, err)
	}
	return &u, nil
}

// InsertReminder records one delivery attempt. Records are never updated.
func (s *Store) InsertReminder(ctx context.Context, debtID, userID int, kind string, status models.ReminderStatus) (*models.Reminder, error) {
	r := models.Reminder{DebtID: debtID, UserID: userID, Kind: kind, Status: status}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reminders (debt_id, user_id, reminder_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sent_at, created_at`,
		debtID, userID, kind, string(status)).Scan(&r.ID, &r.SentAt, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s reminder for debt %d kind %s: %w", status, debtID, kind, err)
	}
	return &r, nil
}

// ListReminders returns the audit trail newest first. userID <= 0 lists all users.
func (s *Store) ListReminders(ctx context.Context, userID int, limit int) ([]models.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, debt_id, user_id, reminder_type, sent_at, status, created_at
		FROM reminders`
	args := []any{}
	if userID > 0 {
		query += ` WHERE user_id = $1 ORDER BY sent_at DESC, id DESC LIMIT $2`
		args = append(args, userID, limit)
	} else {
		query += ` ORDER BY sent_at DESC, id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reminders: %w", err)
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		var r models.Reminder
		var status string
		if err := rows.Scan(&r.ID, &r.DebtID, &r.UserID, &r.Kind, &r.SentAt, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder row: %w", err)
		}
		r.Status = models.ReminderStatus(status)
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}
	return reminders, nil
}

// CreateUser inserts a user, returning the existing row's ID on a handle conflict
func (s *Store) CreateUser(ctx context.Context, externalHandle, name string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (external_handle, name) VALUES ($1, $2)
		ON CONFLICT (external_handle) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, externalHandle, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("unable to create or find user %s in database: %w", externalHandle, err)
	}
	return id, nil
}

// CreateDebt inserts a debt for an existing user
func (s *Store) CreateDebt(ctx context.Context, d models.Debt) (int, error) {
	if d.Status == "" {
		d.Status = models.DebtUnpaid
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO debts (user_id, amount, due_date, status, description)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id`,
		d.UserID, d.Amount, d.DueDate, string(d.Status), d.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create debt for user %d: %w", d.UserID, err)
	}
	return id, nil
}
