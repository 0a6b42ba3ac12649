package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/prep/pkg/models"
)

const jobInfoColumns = `j.id, j.user_id, j.title, j.name, j.description, j.experience_level, j.created, j.updated`

func scanJobInfo(s scanner, dest ...any) (*models.JobInfo, error) {
	var j models.JobInfo
	var title sql.NullString
	cols := append([]any{&j.ID, &j.UserID, &title, &j.Name, &j.Description, &j.ExperienceLevel, &j.Created, &j.Updated}, dest...)
	if err := s.Scan(cols...); err != nil {
		return nil, err
	}
	j.Title = fromNullable(title)
	return &j, nil
}

func (r *Repo) CreateJobInfo(ctx context.Context, j *models.JobInfo) error {
	if j == nil {
		return fmt.Errorf("job info is nil")
	}
	if !j.ExperienceLevel.Valid() {
		return fmt.Errorf("invalid experience level %q", j.ExperienceLevel)
	}
	if j.ID == "" {
		j.ID = newID()
	}
	j.Created = now()
	j.Updated = j.Created

	_, err := r.conn.Exec(ctx, `INSERT INTO job_infos (id, user_id, title, name, description, experience_level, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, nullable(j.Title), j.Name, j.Description, j.ExperienceLevel, j.Created, j.Updated)
	if err != nil {
		return fmt.Errorf("insert job info: %w", err)
	}
	return nil
}

func (r *Repo) GetJobInfo(ctx context.Context, id string) (*models.JobInfo, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobInfoColumns+` FROM job_infos j WHERE j.id = ?`, id)
	j, err := scanJobInfo(row)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

func (r *Repo) ListJobInfosByUser(ctx context.Context, userID string) ([]models.JobInfo, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobInfoColumns+` FROM job_infos j WHERE j.user_id = ? ORDER BY j.updated DESC, j.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobInfo
	for rows.Next() {
		j, err := scanJobInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateJobInfo(ctx context.Context, id string, upd models.JobInfoUpdate) (*models.JobInfo, error) {
	if upd.ExperienceLevel != nil && !upd.ExperienceLevel.Valid() {
		return nil, fmt.Errorf("invalid experience level %q", *upd.ExperienceLevel)
	}

	var level sql.NullString
	if upd.ExperienceLevel != nil {
		level = sql.NullString{String: string(*upd.ExperienceLevel), Valid: true}
	}
	var title sql.NullString
	if upd.Title != nil && *upd.Title != "" {
		title = sql.NullString{String: *upd.Title, Valid: true}
	}
	res, err := r.conn.Exec(ctx, `UPDATE job_infos SET
    title = CASE WHEN ? THEN ? ELSE title END,
    name = COALESCE(?, name),
    description = COALESCE(?, description),
    experience_level = COALESCE(?, experience_level),
    updated = ?
WHERE id = ?`, upd.Title != nil, title, nullable(upd.Name), nullable(upd.Description), level, now(), id)
	if err != nil {
		return nil, fmt.Errorf("update job info: %w", err)
	}
	if ok, err := affected(res); err != nil || !ok {
		return nil, err
	}
	return r.GetJobInfo(ctx, id)
}
