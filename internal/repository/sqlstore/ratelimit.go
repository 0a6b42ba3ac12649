package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// UpdateBucket runs fn against the stored token bucket for key inside a
// transaction and persists what it returns. found is false for a new key.
func (r *Repo) UpdateBucket(ctx context.Context, key string, fn func(tokens float64, updated int64, found bool) (float64, int64)) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.lockKey(ctx, tx, "bucket:"+key); err != nil {
		return err
	}

	var tokens float64
	var updated int64
	found := true
	err = tx.QueryRow(ctx, `SELECT tokens, updated FROM rate_limit_buckets WHERE key = ?`, key).Scan(&tokens, &updated)
	if err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("load bucket: %w", err)
		}
		found = false
	}

	tokens, updated = fn(tokens, updated, found)
	if _, err := tx.Exec(ctx, `INSERT INTO rate_limit_buckets (key, tokens, updated) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET tokens = excluded.tokens, updated = excluded.updated`, key, tokens, updated); err != nil {
		return fmt.Errorf("store bucket: %w", err)
	}
	return tx.Commit()
}

// RecordHit drops hits for key older than since, then records a hit at `at`
// when fewer than limit remain. It returns the hit count before recording.
func (r *Repo) RecordHit(ctx context.Context, key string, since, at int64, limit int64) (int64, bool, error) {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	if err := r.lockKey(ctx, tx, "window:"+key); err != nil {
		return 0, false, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rate_limit_hits WHERE key = ? AND at <= ?`, key, since); err != nil {
		return 0, false, fmt.Errorf("prune hits: %w", err)
	}
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM rate_limit_hits WHERE key = ?`, key).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("count hits: %w", err)
	}
	if count >= limit {
		return count, false, tx.Commit()
	}
	if _, err := tx.Exec(ctx, `INSERT INTO rate_limit_hits (key, at) VALUES (?, ?)`, key, at); err != nil {
		return 0, false, fmt.Errorf("record hit: %w", err)
	}
	return count, true, tx.Commit()
}
