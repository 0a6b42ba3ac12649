package repository

import (
	"context"

	"github.com/garnizeh/prep/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return nil, nil when the row does not exist.

type UserRepo interface {
	// UpsertUser inserts the user or overwrites name, email and image of an
	// existing row with the same id.
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type JobInfoRepo interface {
	CreateJobInfo(ctx context.Context, j *models.JobInfo) error
	GetJobInfo(ctx context.Context, id string) (*models.JobInfo, error)
	ListJobInfosByUser(ctx context.Context, userID string) ([]models.JobInfo, error)
	UpdateJobInfo(ctx context.Context, id string, upd models.JobInfoUpdate) (*models.JobInfo, error)
}

type QuestionRepo interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	// GetQuestion loads the question with its parent JobInfo.
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// ListQuestionsByJobInfo returns questions oldest first, each with its JobInfo.
	ListQuestionsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Question, error)
	CountQuestionsByUser(ctx context.Context, userID string) (int64, error)
}

type InterviewRepo interface {
	CreateInterview(ctx context.Context, i *models.Interview) error
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	// ListInterviewsByJobInfo returns interviews most recently updated first.
	ListInterviewsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Interview, error)
	UpdateInterview(ctx context.Context, id string, upd models.InterviewUpdate) (*models.Interview, error)
	// CountCompletedInterviewsByUser counts interviews that reached the voice
	// provider, i.e. the ones with a chat id.
	CountCompletedInterviewsByUser(ctx context.Context, userID string) (int64, error)
}

// Store groups every entity repository.
type Store interface {
	UserRepo
	JobInfoRepo
	QuestionRepo
	InterviewRepo
}
