package access

import (
	"context"

	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

type Interviews struct {
	repo  repository.InterviewRepo
	cache *cache.Cache
}

func (a *Interviews) Get(ctx context.Context, id, userID string) (*models.Interview, error) {
	i, err := cache.Fetch(ctx, a.cache, "interviews:id:"+id, []cache.Tag{cache.IDTag(cache.Interviews, id)},
		func(ctx context.Context, tg *cache.Tagger) (*models.Interview, error) {
			i, err := a.repo.GetInterview(ctx, id)
			if err != nil || i == nil {
				return i, err
			}
			tg.Add(cache.IDTag(cache.JobInfos, i.JobInfoID))
			if i.JobInfo != nil {
				tg.Add(cache.UserTag(cache.JobInfos, i.JobInfo.UserID))
			}
			return i, nil
		})
	if err != nil {
		return nil, err
	}
	if i == nil || i.JobInfo == nil || i.JobInfo.UserID != userID {
		return nil, nil
	}
	return cloneInterview(i), nil
}

// ListByJobInfo returns the job info's interviews most recently updated first.
func (a *Interviews) ListByJobInfo(ctx context.Context, jobInfoID, userID string) ([]models.Interview, error) {
	tags := []cache.Tag{
		cache.JobInfoTag(cache.Interviews, jobInfoID),
		cache.GlobalTag(cache.Interviews),
		cache.IDTag(cache.JobInfos, jobInfoID),
	}
	list, err := cache.Fetch(ctx, a.cache, "interviews:jobInfo:"+jobInfoID, tags,
		func(ctx context.Context, _ *cache.Tagger) ([]models.Interview, error) {
			return a.repo.ListInterviewsByJobInfo(ctx, jobInfoID)
		})
	if err != nil {
		return nil, err
	}

	out := make([]models.Interview, 0, len(list))
	for i := range list {
		if list[i].JobInfo != nil && list[i].JobInfo.UserID == userID {
			out = append(out, *cloneInterview(&list[i]))
		}
	}
	return out, nil
}

func (a *Interviews) CountCompletedByUser(ctx context.Context, userID string) (int64, error) {
	tags := []cache.Tag{cache.GlobalTag(cache.Interviews), cache.UserTag(cache.JobInfos, userID)}
	return cache.Fetch(ctx, a.cache, "interviews:completed:"+userID, tags,
		func(ctx context.Context, _ *cache.Tagger) (int64, error) {
			return a.repo.CountCompletedInterviewsByUser(ctx, userID)
		})
}

// Insert creates an interview with the initial duration. Callers authorize
// the job info first.
func (a *Interviews) Insert(ctx context.Context, jobInfoID string) (models.Ref, error) {
	i := &models.Interview{JobInfoID: jobInfoID, Duration: models.InitialDuration}
	if err := a.repo.CreateInterview(ctx, i); err != nil {
		return models.Ref{}, err
	}
	a.revalidate(i.ID, jobInfoID)
	return models.Ref{ID: i.ID, ParentID: jobInfoID}, nil
}

// Update applies upd to an interview owned by userID; nil, nil when missing
// or not owned.
func (a *Interviews) Update(ctx context.Context, id, userID string, upd models.InterviewUpdate) (*models.Interview, error) {
	existing, err := a.Get(ctx, id, userID)
	if err != nil || existing == nil {
		return nil, err
	}

	i, err := a.repo.UpdateInterview(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	a.revalidate(id, existing.JobInfoID)
	return i, nil
}

func (a *Interviews) revalidate(id, jobInfoID string) {
	a.cache.Invalidate(
		cache.GlobalTag(cache.Interviews),
		cache.JobInfoTag(cache.Interviews, jobInfoID),
		cache.IDTag(cache.Interviews, id),
	)
}
