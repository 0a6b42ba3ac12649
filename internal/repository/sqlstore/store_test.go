package sqlstore_test

import (
	"context"
	"testing"

	dbfs "github.com/garnizeh/prep/db"
	dbpkg "github.com/garnizeh/prep/internal/db"
	"github.com/garnizeh/prep/internal/repository/sqlstore"
	"github.com/garnizeh/prep/pkg/models"
)

func setupRepo(t *testing.T) *sqlstore.Repo {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, dbpkg.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(d, nil)
}

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, repo *sqlstore.Repo, id string) {
	t.Helper()
	u := &models.User{ID: id, Name: "User " + id, Email: id + "@example.com", ImageURL: "https://img/" + id}
	if err := repo.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
}

func seedJobInfo(t *testing.T, repo *sqlstore.Repo, userID string) *models.JobInfo {
	t.Helper()
	j := &models.JobInfo{UserID: userID, Name: "Backend Eng", Description: "Go services", ExperienceLevel: models.MidLevel}
	if err := repo.CreateJobInfo(context.Background(), j); err != nil {
		t.Fatalf("CreateJobInfo: %v", err)
	}
	return j
}

func TestUserUpsertIsIdempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	got, err := repo.GetUser(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing user, got %#v, %v", got, err)
	}

	u := &models.User{ID: "user_1", Name: "Alice", Email: "alice@example.com", ImageURL: "a.png"}
	if err := repo.UpsertUser(ctx, u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	created := u.Created

	u2 := &models.User{ID: "user_1", Name: "Alice B", Email: "alice.b@example.com", ImageURL: "b.png"}
	if err := repo.UpsertUser(ctx, u2); err != nil {
		t.Fatalf("second UpsertUser: %v", err)
	}
	if u2.Created != created {
		t.Fatalf("expected created to be preserved, got %d want %d", u2.Created, created)
	}

	got, err = repo.GetUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Alice B" || got.Email != "alice.b@example.com" || got.ImageURL != "b.png" {
		t.Fatalf("expected latest values, got %#v", got)
	}

	if err := repo.UpsertUser(ctx, nil); err == nil {
		t.Fatalf("expected error for nil user")
	}
}

func TestJobInfoCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	bad := &models.JobInfo{UserID: "u1", Name: "x", Description: "y", ExperienceLevel: "principal"}
	if err := repo.CreateJobInfo(ctx, bad); err == nil {
		t.Fatalf("expected error for invalid experience level")
	}

	first := seedJobInfo(t, repo, "u1")
	if first.ID == "" || first.Created == 0 {
		t.Fatalf("expected id and timestamps to be set: %#v", first)
	}
	second := seedJobInfo(t, repo, "u1")

	got, err := repo.GetJobInfo(ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetJobInfo: %#v, %v", got, err)
	}
	if got.Title != nil {
		t.Fatalf("expected nil title, got %q", *got.Title)
	}

	senior := models.Senior
	updated, err := repo.UpdateJobInfo(ctx, first.ID, models.JobInfoUpdate{Title: strPtr("Staff"), ExperienceLevel: &senior})
	if err != nil {
		t.Fatalf("UpdateJobInfo: %v", err)
	}
	if updated.Title == nil || *updated.Title != "Staff" || updated.ExperienceLevel != models.Senior || updated.Name != "Backend Eng" {
		t.Fatalf("unexpected update result: %#v", updated)
	}

	// nil keeps the title, an empty string clears it
	updated, err = repo.UpdateJobInfo(ctx, first.ID, models.JobInfoUpdate{Name: strPtr("Backend Eng")})
	if err != nil || updated.Title == nil || *updated.Title != "Staff" {
		t.Fatalf("title should survive an update without it: %#v, %v", updated, err)
	}
	updated, err = repo.UpdateJobInfo(ctx, first.ID, models.JobInfoUpdate{Title: strPtr("")})
	if err != nil || updated.Title != nil {
		t.Fatalf("empty title should clear it: %#v, %v", updated, err)
	}

	list, err := repo.ListJobInfosByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListJobInfosByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 job infos, got %d", len(list))
	}
	if list[0].Updated < list[1].Updated {
		t.Fatalf("expected most recently updated first, got %d, %d", list[0].Updated, list[1].Updated)
	}
	for _, j := range list {
		if j.ID != first.ID && j.ID != second.ID {
			t.Fatalf("unexpected job info %s", j.ID)
		}
	}

	missing, err := repo.UpdateJobInfo(ctx, "nope", models.JobInfoUpdate{Name: strPtr("x")})
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil updating missing job info, got %#v, %v", missing, err)
	}
}

func TestQuestionsOrderingAndCount(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")
	seedUser(t, repo, "u2")
	j1 := seedJobInfo(t, repo, "u1")
	j2 := seedJobInfo(t, repo, "u1")
	other := seedJobInfo(t, repo, "u2")

	var ids []string
	for _, j := range []*models.JobInfo{j1, j1, j2, other} {
		q := &models.Question{JobInfoID: j.ID, Text: "Explain goroutines", Difficulty: models.Medium}
		if err := repo.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		ids = append(ids, q.ID)
	}

	if err := repo.CreateQuestion(ctx, &models.Question{JobInfoID: j1.ID, Text: "x", Difficulty: "extreme"}); err == nil {
		t.Fatalf("expected error for invalid difficulty")
	}

	q, err := repo.GetQuestion(ctx, ids[0])
	if err != nil || q == nil {
		t.Fatalf("GetQuestion: %#v, %v", q, err)
	}
	if q.JobInfo == nil || q.JobInfo.UserID != "u1" || q.JobInfo.ID != j1.ID {
		t.Fatalf("expected joined job info, got %#v", q.JobInfo)
	}

	list, err := repo.ListQuestionsByJobInfo(ctx, j1.ID)
	if err != nil {
		t.Fatalf("ListQuestionsByJobInfo: %v", err)
	}
	if len(list) != 2 || list[0].Created > list[1].Created {
		t.Fatalf("expected 2 questions oldest first, got %#v", list)
	}

	n, err := repo.CountQuestionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("CountQuestionsByUser: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 questions across u1's job infos, got %d", n)
	}
}

func TestInterviewLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")
	j := seedJobInfo(t, repo, "u1")

	i := &models.Interview{JobInfoID: j.ID}
	if err := repo.CreateInterview(ctx, i); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	if i.Duration != models.InitialDuration {
		t.Fatalf("expected initial duration, got %q", i.Duration)
	}

	n, err := repo.CountCompletedInterviewsByUser(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 completed interviews, got %d, %v", n, err)
	}

	got, err := repo.UpdateInterview(ctx, i.ID, models.InterviewUpdate{Duration: strPtr("00:01:30"), ChatID: strPtr("chat_1")})
	if err != nil {
		t.Fatalf("UpdateInterview: %v", err)
	}
	if got.Duration != "00:01:30" || got.ChatID == nil || *got.ChatID != "chat_1" || got.Feedback != nil {
		t.Fatalf("unexpected interview after update: %#v", got)
	}

	got, err = repo.UpdateInterview(ctx, i.ID, models.InterviewUpdate{Feedback: strPtr("good")})
	if err != nil {
		t.Fatalf("UpdateInterview feedback: %v", err)
	}
	if got.Duration != "00:01:30" || *got.ChatID != "chat_1" || *got.Feedback != "good" {
		t.Fatalf("partial update clobbered fields: %#v", got)
	}

	n, err = repo.CountCompletedInterviewsByUser(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 completed interview, got %d, %v", n, err)
	}

	second := &models.Interview{JobInfoID: j.ID}
	if err := repo.CreateInterview(ctx, second); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	list, err := repo.ListInterviewsByJobInfo(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListInterviewsByJobInfo: %v", err)
	}
	if len(list) != 2 || list[0].Updated < list[1].Updated {
		t.Fatalf("expected most recently updated first: %#v", list)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")
	j := seedJobInfo(t, repo, "u1")

	q := &models.Question{JobInfoID: j.ID, Text: "q", Difficulty: models.Easy}
	if err := repo.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	i := &models.Interview{JobInfoID: j.ID}
	if err := repo.CreateInterview(ctx, i); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}

	if err := repo.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if got, _ := repo.GetJobInfo(ctx, j.ID); got != nil {
		t.Fatalf("expected job info to be deleted")
	}
	if got, _ := repo.GetQuestion(ctx, q.ID); got != nil {
		t.Fatalf("expected question to be deleted")
	}
	if got, _ := repo.GetInterview(ctx, i.ID); got != nil {
		t.Fatalf("expected interview to be deleted")
	}
}

func TestUpdateBucket(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var sawFound bool
	err := repo.UpdateBucket(ctx, "k", func(tokens float64, updated int64, found bool) (float64, int64) {
		sawFound = found
		return 11, 1000
	})
	if err != nil {
		t.Fatalf("UpdateBucket: %v", err)
	}
	if sawFound {
		t.Fatalf("expected first call to see no bucket")
	}

	err = repo.UpdateBucket(ctx, "k", func(tokens float64, updated int64, found bool) (float64, int64) {
		if !found || tokens != 11 || updated != 1000 {
			t.Fatalf("unexpected stored state: %v %v %v", tokens, updated, found)
		}
		return tokens - 1, 2000
	})
	if err != nil {
		t.Fatalf("UpdateBucket: %v", err)
	}
}

func TestRecordHit(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		n, ok, err := repo.RecordHit(ctx, "k", 0, 100+i, 3)
		if err != nil || !ok || n != i {
			t.Fatalf("hit %d: n=%d ok=%v err=%v", i, n, ok, err)
		}
	}
	if _, ok, err := repo.RecordHit(ctx, "k", 0, 104, 3); err != nil || ok {
		t.Fatalf("expected 4th hit to be denied, ok=%v err=%v", ok, err)
	}
	// hits at or before `since` fall out of the window
	if n, ok, err := repo.RecordHit(ctx, "k", 101, 200, 3); err != nil || !ok || n != 1 {
		t.Fatalf("expected pruned window to admit, n=%d ok=%v err=%v", n, ok, err)
	}
}
