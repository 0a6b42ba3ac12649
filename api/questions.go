package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/metrics"
	"github.com/garnizeh/prep/internal/permissions"
	"github.com/garnizeh/prep/pkg/models"
)

const (
	msgQuestionFailed = "Error generating your question"
	msgFeedbackFailed = "Error generating your feedback"
)

type QuestionsHandler struct {
	access  *access.Layer
	perms   *permissions.Evaluator
	engine  *ai.Engine
	metrics *metrics.Metrics
}

func NewQuestionsHandler(a *access.Layer, p *permissions.Evaluator, e *ai.Engine, m *metrics.Metrics) *QuestionsHandler {
	return &QuestionsHandler{access: a, perms: p, engine: e, metrics: m}
}

type generateQuestionRequest struct {
	Prompt    string `json:"prompt" validate:"required,difficulty"`
	JobInfoID string `json:"jobInfoId" validate:"required"`
}

type generateQuestionResult struct {
	QuestionID string `json:"questionId"`
}

// GenerateQuestion streams a new question for one of the caller's job infos
// and stores it once the provider finished.
func (h *QuestionsHandler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req generateQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, msgQuestionFailed, http.StatusBadRequest)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}

	allowed, err := h.perms.CanCreateQuestion(r.Context())
	if err != nil {
		internalError(w, "check question permission", err)
		return
	}
	if !allowed {
		http.Error(w, msgPlanLimit, http.StatusForbidden)
		return
	}

	job, err := h.access.JobInfos.Get(r.Context(), req.JobInfoID, p.UserID)
	if err != nil {
		internalError(w, "load job info", err)
		return
	}
	if job == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}

	previous, err := h.access.Questions.ListByJobInfo(r.Context(), job.ID, p.UserID)
	if err != nil {
		internalError(w, "list questions", err)
		return
	}

	difficulty := models.Difficulty(req.Prompt)
	ctx, cancel := context.WithCancel(r.Context())
	stream := h.engine.StreamQuestion(ctx, ai.QuestionInput{JobInfo: *job, Previous: previous, Difficulty: difficulty})

	streamGeneration(w, r, h.metrics, "generate_question", msgQuestionFailed, stream, cancel,
		func(ctx context.Context, text string) (any, error) {
			ref, err := h.access.Questions.Insert(ctx, &models.Question{
				JobInfoID:  job.ID,
				Text:       text,
				Difficulty: difficulty,
			})
			if err != nil {
				return nil, err
			}
			return generateQuestionResult{QuestionID: ref.ID}, nil
		})
}

type generateFeedbackRequest struct {
	Prompt     string `json:"prompt" validate:"required"`
	QuestionID string `json:"questionId" validate:"required"`
}

// GenerateFeedback streams a graded review of the caller's answer. Nothing
// is stored.
func (h *QuestionsHandler) GenerateFeedback(w http.ResponseWriter, r *http.Request) {
	var req generateFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, msgFeedbackFailed, http.StatusBadRequest)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q, err := h.access.Questions.Get(r.Context(), req.QuestionID, p.UserID)
	if err != nil {
		internalError(w, "load question", err)
		return
	}
	if q == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	stream := h.engine.StreamQuestionFeedback(ctx, q.Text, req.Prompt)
	streamGeneration(w, r, h.metrics, "generate_feedback", msgFeedbackFailed, stream, cancel, nil)
}

// List returns the questions of a job info, oldest first.
func (h *QuestionsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	jobInfoID := mux.Vars(r)["id"]

	job, err := h.access.JobInfos.Get(r.Context(), jobInfoID, p.UserID)
	if err != nil {
		internalError(w, "load job info", err)
		return
	}
	if job == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}

	list, err := h.access.Questions.ListByJobInfo(r.Context(), jobInfoID, p.UserID)
	if err != nil {
		internalError(w, "list questions", err)
		return
	}
	if list == nil {
		list = []models.Question{}
	}
	writeJSON(w, list, http.StatusOK)
}

// Get returns one question with its job info.
func (h *QuestionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q, err := h.access.Questions.Get(r.Context(), mux.Vars(r)["id"], p.UserID)
	if err != nil {
		internalError(w, "load question", err)
		return
	}
	if q == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}
	writeJSON(w, q, http.StatusOK)
}
