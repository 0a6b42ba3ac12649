// Package access is the only sanctioned read and write path for entities.
// Every accessor checks tenant ownership, tags its cached reads and
// invalidates the affected tags after a write.
//
// Reads of rows that do not exist and rows owned by someone else both return
// nil, nil.
package access

import (
	"context"

	"github.com/garnizeh/prep/internal/cache"
	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

type Layer struct {
	Users      *Users
	JobInfos   *JobInfos
	Questions  *Questions
	Interviews *Interviews
}

func New(repo repository.Store, c *cache.Cache) *Layer {
	return &Layer{
		Users:      &Users{repo: repo, cache: c},
		JobInfos:   &JobInfos{repo: repo, cache: c},
		Questions:  &Questions{repo: repo, cache: c},
		Interviews: &Interviews{repo: repo, cache: c},
	}
}

// CountQuestionsByUser and CountCompletedInterviewsByUser let the layer serve
// as permission counters.
func (l *Layer) CountQuestionsByUser(ctx context.Context, userID string) (int64, error) {
	return l.Questions.CountByUser(ctx, userID)
}

func (l *Layer) CountCompletedInterviewsByUser(ctx context.Context, userID string) (int64, error) {
	return l.Interviews.CountCompletedByUser(ctx, userID)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneJobInfo(j *models.JobInfo) *models.JobInfo {
	if j == nil {
		return nil
	}
	c := *j
	c.Title = cloneString(j.Title)
	return &c
}

func cloneQuestion(q *models.Question) *models.Question {
	if q == nil {
		return nil
	}
	c := *q
	c.JobInfo = cloneJobInfo(q.JobInfo)
	return &c
}

func cloneInterview(i *models.Interview) *models.Interview {
	if i == nil {
		return nil
	}
	c := *i
	c.ChatID = cloneString(i.ChatID)
	c.Feedback = cloneString(i.Feedback)
	c.JobInfo = cloneJobInfo(i.JobInfo)
	return &c
}
