/*
Package store provides implementations of the engine's message
persistence interface.

This file holds the postgres-backed store: connection pool setup,
embedded goose migrations, and the append/tail queries over the
messages table.
*/
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"parley/internal/app/chat"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore persists messages in a postgres messages table keyed by
// (room_name, seq).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool for dsn, runs pending
// migrations, and returns the store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// AppendMessage inserts msg. A duplicate (room_name, seq) pair means the
// message was already persisted; that is treated as success so a persist
// retry never fails the log.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg chat.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (room_name, seq, sender_id, sender_username, body, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.Room, msg.Seq, msg.SenderID, msg.SenderUsername, msg.Text, msg.SentAt,
	)

	if err != nil && isUniqueViolation(err) {
		return nil
	}

	return err
}

// LoadHistoryTail returns up to limit most recent messages for room in
// ascending seq order.
func (s *PostgresStore) LoadHistoryTail(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_name, seq, sender_id, sender_username, body, sent_at
		 FROM messages
		 WHERE room_name = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		room, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history tail: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		var msg chat.Message
		err := row.Scan(&msg.Room, &msg.Seq, &msg.SenderID, &msg.SenderUsername, &msg.Text, &msg.SentAt)
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history tail: %w", err)
	}

	// Query returns newest first; the engine wants ascending seq.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// isUniqueViolation checks for a postgres unique constraint violation
// (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// runMigrations applies all pending migrations from the embedded
// filesystem.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
