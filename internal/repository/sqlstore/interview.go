package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/prep/pkg/models"
)

const interviewSelect = `SELECT i.id, i.job_info_id, i.duration, i.chat_id, i.feedback, i.created, i.updated, ` + jobInfoColumns + `
FROM interviews i JOIN job_infos j ON j.id = i.job_info_id`

func scanInterview(s scanner) (*models.Interview, error) {
	var i models.Interview
	var chatID, feedback sql.NullString
	j, err := scanJobInfo(prefixed{s: s, n: 7}, &i.ID, &i.JobInfoID, &i.Duration, &chatID, &feedback, &i.Created, &i.Updated)
	if err != nil {
		return nil, err
	}
	i.ChatID = fromNullable(chatID)
	i.Feedback = fromNullable(feedback)
	i.JobInfo = j
	return &i, nil
}

func (r *Repo) CreateInterview(ctx context.Context, i *models.Interview) error {
	if i == nil {
		return fmt.Errorf("interview is nil")
	}
	if i.ID == "" {
		i.ID = newID()
	}
	if i.Duration == "" {
		i.Duration = models.InitialDuration
	}
	i.Created = now()
	i.Updated = i.Created

	_, err := r.conn.Exec(ctx, `INSERT INTO interviews (id, job_info_id, duration, chat_id, feedback, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.JobInfoID, i.Duration, nullable(i.ChatID), nullable(i.Feedback), i.Created, i.Updated)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

func (r *Repo) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	i, err := scanInterview(r.conn.QueryRow(ctx, interviewSelect+` WHERE i.id = ?`, id))
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return i, nil
}

func (r *Repo) ListInterviewsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Interview, error) {
	rows, err := r.conn.QueryRows(ctx, interviewSelect+` WHERE i.job_info_id = ? ORDER BY i.updated DESC, i.id`, jobInfoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Interview
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateInterview(ctx context.Context, id string, upd models.InterviewUpdate) (*models.Interview, error) {
	res, err := r.conn.Exec(ctx, `UPDATE interviews SET
    duration = COALESCE(?, duration),
    chat_id = COALESCE(?, chat_id),
    feedback = COALESCE(?, feedback),
    updated = ?
WHERE id = ?`, nullable(upd.Duration), nullable(upd.ChatID), nullable(upd.Feedback), now(), id)
	if err != nil {
		return nil, fmt.Errorf("update interview: %w", err)
	}
	if ok, err := affected(res); err != nil || !ok {
		return nil, err
	}
	return r.GetInterview(ctx, id)
}

func (r *Repo) CountCompletedInterviewsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM interviews i JOIN job_infos j ON j.id = i.job_info_id WHERE j.user_id = ? AND i.chat_id IS NOT NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interviews: %w", err)
	}
	return n, nil
}
