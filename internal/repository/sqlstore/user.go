package sqlstore

import (
	"context"
	"fmt"

	"github.com/garnizeh/prep/pkg/models"
)

func (r *Repo) UpsertUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if u.ID == "" {
		return fmt.Errorf("user id is empty")
	}

	// timestamps reported by the identity provider win over the local clock
	created, updated := u.Created, u.Updated
	if created == 0 {
		created = now()
	}
	if updated == 0 {
		updated = now()
	}
	row := r.conn.QueryRow(ctx, `INSERT INTO users (id, name, email, image_url, created, updated) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, image_url = excluded.image_url, updated = excluded.updated
RETURNING created, updated`, u.ID, u.Name, u.Email, u.ImageURL, created, updated)
	if err := row.Scan(&u.Created, &u.Updated); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, image_url, created, updated FROM users WHERE id = ?`, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &u.Created, &u.Updated); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the user; job infos, questions and interviews go with it
// through the foreign key cascade.
func (r *Repo) DeleteUser(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}
