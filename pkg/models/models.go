package models

// Domain models matching the database schema in db/migrations/0001_init.sql.
// Timestamps are unix milliseconds.

type User struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	ImageURL string `json:"imageUrl" db:"image_url"`
	Created  int64  `json:"created" db:"created"`
	Updated  int64  `json:"updated" db:"updated"`
}

type JobInfo struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	Title           *string         `json:"title" db:"title"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description" db:"description"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel" db:"experience_level"`
	Created         int64           `json:"created" db:"created"`
	Updated         int64           `json:"updated" db:"updated"`
}

// JobInfoUpdate is a partial update; nil fields are left unchanged and an
// empty Title clears the title. The owning user cannot be changed.
type JobInfoUpdate struct {
	Title           *string
	Name            *string
	Description     *string
	ExperienceLevel *ExperienceLevel
}

type Question struct {
	ID         string     `json:"id" db:"id"`
	JobInfoID  string     `json:"jobInfoId" db:"job_info_id"`
	Text       string     `json:"text" db:"text"`
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`
	Created    int64      `json:"created" db:"created"`
	Updated    int64      `json:"updated" db:"updated"`

	// JobInfo is the parent row when loaded with the question.
	JobInfo *JobInfo `json:"jobInfo,omitempty" db:"-"`
}

// InitialDuration is the duration every interview starts with.
const InitialDuration = "00:00:00"

type Interview struct {
	ID        string  `json:"id" db:"id"`
	JobInfoID string  `json:"jobInfoId" db:"job_info_id"`
	Duration  string  `json:"duration" db:"duration"`
	ChatID    *string `json:"chatId" db:"chat_id"`
	Feedback  *string `json:"feedback" db:"feedback"`
	Created   int64   `json:"created" db:"created"`
	Updated   int64   `json:"updated" db:"updated"`

	JobInfo *JobInfo `json:"jobInfo,omitempty" db:"-"`
}

type InterviewUpdate struct {
	Duration *string
	ChatID   *string
	Feedback *string
}

// Ref identifies a freshly written row and its owner (user for JobInfo,
// job info for Question and Interview).
type Ref struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
}
