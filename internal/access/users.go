package access

import (
	"context"
	"fmt"

	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

type Users struct {
	repo  repository.UserRepo
	cache *cache.Cache
}

func (a *Users) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := cache.Fetch(ctx, a.cache, "users:id:"+id, []cache.Tag{cache.IDTag(cache.Users, id)},
		func(ctx context.Context, _ *cache.Tagger) (*models.User, error) {
			return a.repo.GetUser(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	return cloneUser(u), nil
}

func (a *Users) Upsert(ctx context.Context, u *models.User) error {
	if err := a.repo.UpsertUser(ctx, u); err != nil {
		return err
	}
	a.revalidate(u.ID)
	return nil
}

// Delete removes the user and, through the database cascade, everything the
// user owns.
func (a *Users) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("user id is empty")
	}
	if err := a.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	a.revalidate(id)
	a.cache.Invalidate(cache.UserTag(cache.JobInfos, id))
	return nil
}

func (a *Users) revalidate(id string) {
	a.cache.Invalidate(cache.GlobalTag(cache.Users), cache.IDTag(cache.Users, id))
}
