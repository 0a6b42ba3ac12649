package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prep/internal/db"
	"github.com/garnizeh/prep/pkg/repository"
)

// Repo implements the repository interfaces with hand-written SQL that runs
// on both sqlite and postgres.
type Repo struct {
	conn   *db.DB
	logger *slog.Logger
}

var _ repository.Store = (*Repo)(nil)

func New(conn *db.DB, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// lockKey serializes concurrent transactions on the same key. sqlite already
// runs a single writer so only postgres needs the advisory lock.
func (r *Repo) lockKey(ctx context.Context, tx *db.Tx, key string) error {
	if r.conn.Driver() != db.DriverPostgres {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(?))`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}
