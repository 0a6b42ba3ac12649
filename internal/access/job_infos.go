package access

import (
	"context"

	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

type JobInfos struct {
	repo  repository.JobInfoRepo
	cache *cache.Cache
}

func (a *JobInfos) Get(ctx context.Context, id, userID string) (*models.JobInfo, error) {
	j, err := cache.Fetch(ctx, a.cache, "jobInfos:id:"+id, []cache.Tag{cache.IDTag(cache.JobInfos, id)},
		func(ctx context.Context, tg *cache.Tagger) (*models.JobInfo, error) {
			j, err := a.repo.GetJobInfo(ctx, id)
			if err != nil || j == nil {
				return j, err
			}
			tg.Add(cache.UserTag(cache.JobInfos, j.UserID))
			return j, nil
		})
	if err != nil {
		return nil, err
	}
	if j == nil || j.UserID != userID {
		return nil, nil
	}
	return cloneJobInfo(j), nil
}

// ListByUser returns the user's job infos, most recently updated first.
func (a *JobInfos) ListByUser(ctx context.Context, userID string) ([]models.JobInfo, error) {
	list, err := cache.Fetch(ctx, a.cache, "jobInfos:user:"+userID, []cache.Tag{cache.UserTag(cache.JobInfos, userID)},
		func(ctx context.Context, _ *cache.Tagger) ([]models.JobInfo, error) {
			return a.repo.ListJobInfosByUser(ctx, userID)
		})
	if err != nil {
		return nil, err
	}

	out := make([]models.JobInfo, 0, len(list))
	for i := range list {
		if list[i].UserID == userID {
			out = append(out, *cloneJobInfo(&list[i]))
		}
	}
	return out, nil
}

func (a *JobInfos) Insert(ctx context.Context, j *models.JobInfo) (models.Ref, error) {
	if err := a.repo.CreateJobInfo(ctx, j); err != nil {
		return models.Ref{}, err
	}
	a.revalidate(j.ID, j.UserID)
	return models.Ref{ID: j.ID, ParentID: j.UserID}, nil
}

// Update applies upd to a job info owned by userID. It returns nil, nil when
// the job info is missing or not owned.
func (a *JobInfos) Update(ctx context.Context, id, userID string, upd models.JobInfoUpdate) (*models.JobInfo, error) {
	existing, err := a.Get(ctx, id, userID)
	if err != nil || existing == nil {
		return nil, err
	}

	j, err := a.repo.UpdateJobInfo(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	a.revalidate(id, existing.UserID)
	return j, nil
}

func (a *JobInfos) revalidate(id, userID string) {
	a.cache.Invalidate(
		cache.GlobalTag(cache.JobInfos),
		cache.UserTag(cache.JobInfos, userID),
		cache.IDTag(cache.JobInfos, id),
	)
}
