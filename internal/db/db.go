package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oatsaysai/debt-reminder/internal/config"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Connect creates the PostgreSQL connection pool
func Connect(ctx context.Context, cfg config.PostgreSQLConfig) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
		cfg.Schema,
	)

	connectConf, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PostgreSQL config: %w", err)
	}

	connectConf.MaxConns = int32(cfg.PoolMaxConns)
	connectConf.HealthCheckPeriod = 15 * time.Second
	connectConf.ConnConfig.ConnectTimeout = 5 * time.Second

	// Set timezone to PGX runtime
	if s := os.Getenv("TZ"); s != "" {
		connectConf.ConnConfig.RuntimeParams["timezone"] = s
	}

	pool, err := pgxpool.NewWithConfig(ctx, connectConf)
	if err != nil {
		return nil, fmt.Errorf("unable to create PostgreSQL connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach PostgreSQL: %w", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return pool, nil
}

// Migrate sets up the database schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("Starting database migration...")

	steps := []struct {
		name string
		sql  string
	}{
		{"users table", `
    CREATE TABLE IF NOT EXISTS users (
        id SERIAL PRIMARY KEY,
        external_handle TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        bpjs_number TEXT,
        is_verified BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );`},
		{"debts table", `
    CREATE TABLE IF NOT EXISTS debts (
        id SERIAL PRIMARY KEY,
        user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        amount BIGINT NOT NULL,
        due_date TIMESTAMPTZ NOT NULL,
        status TEXT NOT NULL DEFAULT 'unpaid',
        description TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_debts_user_id ON debts(user_id);
    CREATE INDEX IF NOT EXISTS idx_debts_status_due ON debts(status, due_date);`},
		{"reminders table", `
    CREATE TABLE IF NOT EXISTS reminders (
        id SERIAL PRIMARY KEY,
        debt_id INT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
        user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        reminder_type TEXT NOT NULL,
        sent_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
        status TEXT NOT NULL DEFAULT 'sent',
        created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_reminders_debt_kind ON reminders(debt_id, reminder_type);
    CREATE INDEX IF NOT EXISTS idx_reminders_user_id ON reminders(user_id);`},
		{"trigger function", `
    CREATE OR REPLACE FUNCTION update_modified_column()
    RETURNS TRIGGER AS $$
    BEGIN
       NEW.updated_at = NOW();
       RETURN NEW;
    END;
    $$ language 'plpgsql';`},
		{"users trigger", `
    DROP TRIGGER IF EXISTS update_users_modtime ON users;
    CREATE TRIGGER update_users_modtime
    BEFORE UPDATE ON users
    FOR EACH ROW
    EXECUTE FUNCTION update_modified_column();`},
		{"debts trigger", `
    DROP TRIGGER IF EXISTS update_debts_modtime ON debts;
    CREATE TRIGGER update_debts_modtime
    BEFORE UPDATE ON debts
    FOR EACH ROW
    EXECUTE FUNCTION update_modified_column();`},
	}

	for _, step := range steps {
		if _, err := pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
	}

	log.Println("Database migration completed successfully")
	return nil
}
