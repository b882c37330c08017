package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oatsaysai/debt-reminder/internal/composer"
	"github.com/oatsaysai/debt-reminder/internal/db"
	"github.com/oatsaysai/debt-reminder/internal/models"
	"github.com/oatsaysai/debt-reminder/internal/utils"
)

const recordTimeout = 10 * time.Second

// RetryPolicy decides which prior reminder records block a new attempt
type RetryPolicy string

const (
	// RetryNever treats any prior record, failed included, as terminal
	RetryNever RetryPolicy = "never"
	// RetryFailed only treats a sent record as terminal; failed keys are attempted again on the next run
	RetryFailed RetryPolicy = "failed"
)

// ParseRetryPolicy maps a config value to a RetryPolicy
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	switch RetryPolicy(s) {
	case RetryNever, RetryFailed:
		return RetryPolicy(s), nil
	case "":
		return RetryNever, nil
	}
	return "", fmt.Errorf("unknown retry policy %q", s)
}

// Store is the persistence the engine reads debts and users from and writes reminders to
type Store interface {
	FindUnpaidDebtsDueOn(ctx context.Context, date time.Time) ([]models.Debt, error)
	FindReminder(ctx context.Context, debtID int, kind string, statuses ...models.ReminderStatus) (*models.Reminder, error)
	FindUser(ctx context.Context, id int) (*models.User, error)
	InsertReminder(ctx context.Context, debtID, userID int, kind string, status models.ReminderStatus) (*models.Reminder, error)
}

// Composer writes the reminder text
type Composer interface {
	Compose(ctx context.Context, in composer.Input) (string, error)
}

// Sender delivers text to a user identified by an external handle
type Sender interface {
	Send(ctx context.Context, handle, text string) error
}

// Config holds the engine settings
type Config struct {
	Kinds       []models.ReminderKind
	RetryPolicy RetryPolicy
	Location    *time.Location   // civil calendar "today" is computed in
	Now         func() time.Time // defaults to time.Now
}

// KindSummary counts what happened to one reminder kind in one run
type KindSummary struct {
	Kind        string `json:"kind"`
	TargetDate  string `json:"target_date"`
	Found       int    `json:"found"`
	Skipped     int    `json:"skipped"`
	MissingUser int    `json:"missing_user"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	QueryError  string `json:"query_error,omitempty"`
}

// Summary describes one ProcessReminders run
type Summary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Kinds      []KindSummary `json:"kinds"`
}

// Engine selects due debts, sends each (debt, kind) reminder at most once
// and records every attempt
type Engine struct {
	store    Store
	composer Composer
	sender   Sender
	cfg      Config

	mu   sync.Mutex
	last *Summary
}

// NewEngine creates an Engine
func NewEngine(store Store, comp Composer, sender Sender, cfg Config) *Engine {
	if cfg.Kinds == nil {
		cfg.Kinds = models.DefaultReminderKinds
	}
	if cfg.RetryPolicy == "" {
		cfg.RetryPolicy = RetryNever
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{store: store, composer: comp, sender: sender, cfg: cfg}
}

// LastSummary returns the summary of the most recent completed run, or nil
func (e *Engine) LastSummary() *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// ProcessReminders runs every configured kind once. Per-debt and per-kind
// failures are logged and recorded, never returned; the only error is the
// context's when the run is cut short.
func (e *Engine) ProcessReminders(ctx context.Context) error {
	summary := &Summary{StartedAt: e.cfg.Now()}
	log.Printf("[%s] Starting reminder processing...", summary.StartedAt.Format(time.RFC3339))

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ReminderEngine] Error processing reminders: %v", r)
		}
		summary.FinishedAt = e.cfg.Now()
		e.mu.Lock()
		e.last = summary
		e.mu.Unlock()
	}()

	today := utils.CivilDate(summary.StartedAt, e.cfg.Location)
	for _, kind := range e.cfg.Kinds {
		if err := ctx.Err(); err != nil {
			log.Printf("[ReminderEngine] Reminder processing cancelled: %v", err)
			return err
		}
		ks, err := e.processKind(ctx, kind, today)
		summary.Kinds = append(summary.Kinds, ks)
		if err != nil {
			return err
		}
	}

	log.Printf("[%s] Reminder processing completed", e.cfg.Now().Format(time.RFC3339))
	return nil
}

func (e *Engine) processKind(ctx context.Context, kind models.ReminderKind, today time.Time) (KindSummary, error) {
	target := today.AddDate(0, 0, kind.DaysBefore)
	ks := KindSummary{Kind: kind.Label, TargetDate: target.Format("2006-01-02")}
	log.Printf("Processing %s reminders...", kind.Label)

	debts, err := e.store.FindUnpaidDebtsDueOn(ctx, target)
	if err != nil {
		log.Printf("Error finding debts due on %s for %s: %v", ks.TargetDate, kind.Label, err)
		ks.QueryError = err.Error()
		return ks, nil
	}
	ks.Found = len(debts)
	log.Printf("Found %d debts due in %d days", len(debts), kind.DaysBefore)

	for _, debt := range debts {
		if err := ctx.Err(); err != nil {
			return ks, err
		}
		switch e.processDebt(ctx, kind, debt) {
		case outcomeSkipped:
			ks.Skipped++
		case outcomeMissingUser:
			ks.MissingUser++
		case outcomeSent:
			ks.Sent++
		case outcomeFailed:
			ks.Failed++
		}
	}

	log.Printf("Finished %s reminders: found=%d sent=%d failed=%d skipped=%d missing_user=%d",
		kind.Label, ks.Found, ks.Sent, ks.Failed, ks.Skipped, ks.MissingUser)
	return ks, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeMissingUser
	outcomeSent
	outcomeFailed
)

func (e *Engine) processDebt(ctx context.Context, kind models.ReminderKind, debt models.Debt) outcome {
	var blocking []models.ReminderStatus
	if e.cfg.RetryPolicy == RetryFailed {
		blocking = []models.ReminderStatus{models.ReminderSent}
	}
	existing, err := e.store.FindReminder(ctx, debt.ID, kind.Label, blocking...)
	switch {
	case err == nil:
		log.Printf("Reminder %s already %s for debt %d", kind.Label, existing.Status, debt.ID)
		return outcomeSkipped
	case !errors.Is(err, db.ErrNotFound):
		// Unknown dedup state: leave the key untouched so the next run decides.
		log.Printf("Error checking reminder %s for debt %d, skipping: %v", kind.Label, debt.ID, err)
		return outcomeSkipped
	}

	user, err := e.store.FindUser(ctx, debt.UserID)
	if errors.Is(err, db.ErrNotFound) {
		log.Printf("User not found for debt %d", debt.ID)
		return outcomeMissingUser
	}
	if err == nil {
		err = e.deliver(ctx, kind, debt, user)
	}
	if err != nil {
		log.Printf("Error sending reminder for debt %d: %v", debt.ID, err)
		if recErr := e.record(ctx, debt.ID, debt.UserID, kind.Label, models.ReminderFailed); recErr != nil {
			log.Printf("Failed to record failed reminder: %v", recErr)
		}
		return outcomeFailed
	}

	log.Printf("Sent %s reminder to user %s for debt %d", kind.Label, user.Name, debt.ID)
	return outcomeSent
}

// deliver composes, sends and records a sent reminder
func (e *Engine) deliver(ctx context.Context, kind models.ReminderKind, debt models.Debt, user *models.User) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	text, err := e.composer.Compose(ctx, composer.Input{
		Name:        user.Name,
		Amount:      debt.Amount,
		DueDate:     debt.DueDate,
		DaysBefore:  kind.DaysBefore,
		Description: debt.Description,
	})
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	if err := e.sender.Send(ctx, user.ExternalHandle, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := e.record(ctx, debt.ID, user.ID, kind.Label, models.ReminderSent); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// record writes the outcome of an attempt. Once a message may have gone
// out the record must land, so the run's cancellation does not apply here.
func (e *Engine) record(ctx context.Context, debtID, userID int, kind string, status models.ReminderStatus) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	_, err := e.store.InsertReminder(ctx, debtID, userID, kind, status)
	return err
}
