package access

import (
	"context"

	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

type Questions struct {
	repo  repository.QuestionRepo
	cache *cache.Cache
}

// Get resolves the question's job info to check ownership.
func (a *Questions) Get(ctx context.Context, id, userID string) (*models.Question, error) {
	q, err := cache.Fetch(ctx, a.cache, "questions:id:"+id, []cache.Tag{cache.IDTag(cache.Questions, id)},
		func(ctx context.Context, tg *cache.Tagger) (*models.Question, error) {
			q, err := a.repo.GetQuestion(ctx, id)
			if err != nil || q == nil {
				return q, err
			}
			tg.Add(cache.IDTag(cache.JobInfos, q.JobInfoID))
			if q.JobInfo != nil {
				tg.Add(cache.UserTag(cache.JobInfos, q.JobInfo.UserID))
			}
			return q, nil
		})
	if err != nil {
		return nil, err
	}
	if q == nil || q.JobInfo == nil || q.JobInfo.UserID != userID {
		return nil, nil
	}
	return cloneQuestion(q), nil
}

// ListByJobInfo returns the job info's questions oldest first, keeping only
// the ones owned by userID.
func (a *Questions) ListByJobInfo(ctx context.Context, jobInfoID, userID string) ([]models.Question, error) {
	tags := []cache.Tag{
		cache.JobInfoTag(cache.Questions, jobInfoID),
		cache.GlobalTag(cache.Questions),
		cache.IDTag(cache.JobInfos, jobInfoID),
	}
	list, err := cache.Fetch(ctx, a.cache, "questions:jobInfo:"+jobInfoID, tags,
		func(ctx context.Context, _ *cache.Tagger) ([]models.Question, error) {
			return a.repo.ListQuestionsByJobInfo(ctx, jobInfoID)
		})
	if err != nil {
		return nil, err
	}

	out := make([]models.Question, 0, len(list))
	for i := range list {
		if list[i].JobInfo != nil && list[i].JobInfo.UserID == userID {
			out = append(out, *cloneQuestion(&list[i]))
		}
	}
	return out, nil
}

func (a *Questions) CountByUser(ctx context.Context, userID string) (int64, error) {
	tags := []cache.Tag{cache.GlobalTag(cache.Questions), cache.UserTag(cache.JobInfos, userID)}
	return cache.Fetch(ctx, a.cache, "questions:count:"+userID, tags,
		func(ctx context.Context, _ *cache.Tagger) (int64, error) {
			return a.repo.CountQuestionsByUser(ctx, userID)
		})
}

// Insert stores q under its job info. Callers authorize the job info first.
func (a *Questions) Insert(ctx context.Context, q *models.Question) (models.Ref, error) {
	if err := a.repo.CreateQuestion(ctx, q); err != nil {
		return models.Ref{}, err
	}
	a.cache.Invalidate(
		cache.GlobalTag(cache.Questions),
		cache.JobInfoTag(cache.Questions, q.JobInfoID),
		cache.IDTag(cache.Questions, q.ID),
	)
	return models.Ref{ID: q.ID, ParentID: q.JobInfoID}, nil
}
