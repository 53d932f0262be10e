package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/janani/maai/models"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps one health_logs row per identity and an append-only
// interactions table hanging off it.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgresStore(db, logger), nil
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	s.logger.Info("STORE: migrations applied")
	return nil
}

// Append upserts the user row and inserts the interaction in one
// transaction. created_at is only written on the first insert.
func (s *PostgresStore) Append(ctx context.Context, entry models.InteractionLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO health_logs (user_key, phone_number, user_email, user_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_key) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		entry.UserKey, nullString(entry.PhoneNumber), nullString(entry.UserEmail), nullString(entry.UserName), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", entry.UserKey, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interactions (id, user_key, created_at, payload)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.UserKey, entry.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit interaction: %w", err)
	}
	return nil
}

// User returns the identity row for userKey.
func (s *PostgresStore) User(ctx context.Context, userKey string) (models.UserRecord, error) {
	var (
		rec                    models.UserRecord
		phone, email, userName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_key, phone_number, user_email, user_name, created_at, updated_at
		FROM health_logs WHERE user_key = $1`, userKey).
		Scan(&rec.UserKey, &phone, &email, &userName, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("user %s: %w", userKey, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load user %s: %w", userKey, err)
	}
	rec.PhoneNumber = phone.String
	rec.UserEmail = email.String
	rec.UserName = userName.String
	return rec, nil
}

// History returns every interaction of userKey, oldest first.
func (s *PostgresStore) History(ctx context.Context, userKey string) ([]models.InteractionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM interactions
		WHERE user_key = $1
		ORDER BY created_at ASC`, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s: %w", userKey, err)
	}
	defer rows.Close()

	var entries []models.InteractionLogEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry models.InteractionLogEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			s.logger.Warn("STORE: skipping undecodable interaction", zap.String("user_key", userKey), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
