package sqlstore

import (
	"context"
	"fmt"

	"github.com/garnizeh/prep/pkg/models"
)

const questionSelect = `SELECT q.id, q.job_info_id, q.text, q.difficulty, q.created, q.updated, ` + jobInfoColumns + `
FROM questions q JOIN job_infos j ON j.id = q.job_info_id`

func scanQuestion(s scanner) (*models.Question, error) {
	var q models.Question
	j, err := scanJobInfo(prefixed{s: s, n: 6}, &q.ID, &q.JobInfoID, &q.Text, &q.Difficulty, &q.Created, &q.Updated)
	if err != nil {
		return nil, err
	}
	q.JobInfo = j
	return &q, nil
}

// prefixed lets a joined row be scanned by the parent's scanner: the n child
// columns come first in the select list and are moved to the front.
type prefixed struct {
	s scanner
	n int
}

func (p prefixed) Scan(dest ...any) error {
	parent := len(dest) - p.n
	ordered := make([]any, 0, len(dest))
	ordered = append(ordered, dest[parent:]...)
	ordered = append(ordered, dest[:parent]...)
	return p.s.Scan(ordered...)
}

func (r *Repo) CreateQuestion(ctx context.Context, q *models.Question) error {
	if q == nil {
		return fmt.Errorf("question is nil")
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q", q.Difficulty)
	}
	if q.ID == "" {
		q.ID = newID()
	}
	q.Created = now()
	q.Updated = q.Created

	_, err := r.conn.Exec(ctx, `INSERT INTO questions (id, job_info_id, text, difficulty, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.JobInfoID, q.Text, q.Difficulty, q.Created, q.Updated)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *Repo) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(r.conn.QueryRow(ctx, questionSelect+` WHERE q.id = ?`, id))
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return q, nil
}

func (r *Repo) ListQuestionsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Question, error) {
	rows, err := r.conn.QueryRows(ctx, questionSelect+` WHERE q.job_info_id = ? ORDER BY q.created ASC, q.id`, jobInfoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *Repo) CountQuestionsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM questions q JOIN job_infos j ON j.id = q.job_info_id WHERE j.user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}
