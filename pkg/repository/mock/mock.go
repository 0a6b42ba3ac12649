package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prep/pkg/models"
	"github.com/garnizeh/prep/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is an in-memory repository.Store for tests. Setting Err makes every
// call fail with it. Calls counts invocations per method name.
type Store struct {
	mu         sync.Mutex
	users      map[string]models.User
	jobInfos   map[string]models.JobInfo
	questions  map[string]models.Question
	interviews map[string]models.Interview
	clock      int64

	Err   error
	Calls map[string]int
}

func New() *Store {
	return &Store{
		users:      map[string]models.User{},
		jobInfos:   map[string]models.JobInfo{},
		questions:  map[string]models.Question{},
		interviews: map[string]models.Interview{},
		Calls:      map[string]int{},
	}
}

// CallCount returns how many times method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

func (s *Store) enter(method string) error {
	s.Calls[method]++
	return s.Err
}

// now is strictly increasing so ordering by timestamp is deterministic.
func (s *Store) now() int64 {
	t := time.Now().UnixMilli()
	if t <= s.clock {
		t = s.clock + 1
	}
	s.clock = t
	return t
}

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpsertUser"); err != nil {
		return err
	}
	now := s.now()
	if old, ok := s.users[u.ID]; ok {
		u.Created = old.Created
	} else if u.Created == 0 {
		u.Created = now
	}
	if u.Updated == 0 {
		u.Updated = now
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteUser"); err != nil {
		return err
	}
	delete(s.users, id)
	for jid, j := range s.jobInfos {
		if j.UserID != id {
			continue
		}
		delete(s.jobInfos, jid)
		for qid, q := range s.questions {
			if q.JobInfoID == jid {
				delete(s.questions, qid)
			}
		}
		for iid, i := range s.interviews {
			if i.JobInfoID == jid {
				delete(s.interviews, iid)
			}
		}
	}
	return nil
}

func (s *Store) CreateJobInfo(ctx context.Context, j *models.JobInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateJobInfo"); err != nil {
		return err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Created = s.now()
	j.Updated = j.Created
	s.jobInfos[j.ID] = *j
	return nil
}

func (s *Store) GetJobInfo(ctx context.Context, id string) (*models.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetJobInfo"); err != nil {
		return nil, err
	}
	j, ok := s.jobInfos[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (s *Store) ListJobInfosByUser(ctx context.Context, userID string) ([]models.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListJobInfosByUser"); err != nil {
		return nil, err
	}
	var out []models.JobInfo
	for _, j := range s.jobInfos {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Updated > out[b].Updated })
	return out, nil
}

func (s *Store) UpdateJobInfo(ctx context.Context, id string, upd models.JobInfoUpdate) (*models.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateJobInfo"); err != nil {
		return nil, err
	}
	j, ok := s.jobInfos[id]
	if !ok {
		return nil, nil
	}
	if upd.Title != nil {
		if *upd.Title == "" {
			j.Title = nil
		} else {
			t := *upd.Title
			j.Title = &t
		}
	}
	if upd.Name != nil {
		j.Name = *upd.Name
	}
	if upd.Description != nil {
		j.Description = *upd.Description
	}
	if upd.ExperienceLevel != nil {
		j.ExperienceLevel = *upd.ExperienceLevel
	}
	j.Updated = s.now()
	s.jobInfos[id] = j
	return &j, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateQuestion"); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Created = s.now()
	q.Updated = q.Created
	stored := *q
	stored.JobInfo = nil
	s.questions[q.ID] = stored
	return nil
}

func (s *Store) withJobInfo(jobInfoID string) *models.JobInfo {
	j, ok := s.jobInfos[jobInfoID]
	if !ok {
		return nil
	}
	return &j
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetQuestion"); err != nil {
		return nil, err
	}
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	q.JobInfo = s.withJobInfo(q.JobInfoID)
	return &q, nil
}

func (s *Store) ListQuestionsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListQuestionsByJobInfo"); err != nil {
		return nil, err
	}
	var out []models.Question
	for _, q := range s.questions {
		if q.JobInfoID == jobInfoID {
			q.JobInfo = s.withJobInfo(q.JobInfoID)
			out = append(out, q)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Created < out[b].Created })
	return out, nil
}

func (s *Store) CountQuestionsByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountQuestionsByUser"); err != nil {
		return 0, err
	}
	var n int64
	for _, q := range s.questions {
		if j, ok := s.jobInfos[q.JobInfoID]; ok && j.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateInterview(ctx context.Context, i *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateInterview"); err != nil {
		return err
	}
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Duration == "" {
		i.Duration = models.InitialDuration
	}
	i.Created = s.now()
	i.Updated = i.Created
	stored := *i
	stored.JobInfo = nil
	s.interviews[i.ID] = stored
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetInterview"); err != nil {
		return nil, err
	}
	i, ok := s.interviews[id]
	if !ok {
		return nil, nil
	}
	i.JobInfo = s.withJobInfo(i.JobInfoID)
	return &i, nil
}

func (s *Store) ListInterviewsByJobInfo(ctx context.Context, jobInfoID string) ([]models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListInterviewsByJobInfo"); err != nil {
		return nil, err
	}
	var out []models.Interview
	for _, i := range s.interviews {
		if i.JobInfoID == jobInfoID {
			i.JobInfo = s.withJobInfo(i.JobInfoID)
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Updated > out[b].Updated })
	return out, nil
}

func (s *Store) UpdateInterview(ctx context.Context, id string, upd models.InterviewUpdate) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateInterview"); err != nil {
		return nil, err
	}
	i, ok := s.interviews[id]
	if !ok {
		return nil, nil
	}
	if upd.Duration != nil {
		i.Duration = *upd.Duration
	}
	if upd.ChatID != nil {
		i.ChatID = upd.ChatID
	}
	if upd.Feedback != nil {
		i.Feedback = upd.Feedback
	}
	i.Updated = s.now()
	s.interviews[id] = i
	i.JobInfo = s.withJobInfo(i.JobInfoID)
	return &i, nil
}

func (s *Store) CountCompletedInterviewsByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountCompletedInterviewsByUser"); err != nil {
		return 0, err
	}
	var n int64
	for _, i := range s.interviews {
		if i.ChatID == nil {
			continue
		}
		if j, ok := s.jobInfos[i.JobInfoID]; ok && j.UserID == userID {
			n++
		}
	}
	return n, nil
}
