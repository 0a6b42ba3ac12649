package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/permissions"
	"github.com/garnizeh/prep/internal/ratelimit"
	"github.com/garnizeh/prep/internal/voice"
	"github.com/garnizeh/prep/pkg/models"
)

const (
	msgNotCompleted          = "Interview has not been completed yet"
	msgInterviewFeedbackFail = "Error generating your feedback"
	msgVoiceUnavailable      = "Voice interviews are not available"
)

// Transcripts is the part of the voice client the interview handlers need.
type Transcripts interface {
	ChatEvents(ctx context.Context, chatID string) ([]voice.Event, error)
}

type InterviewsHandler struct {
	access  *access.Layer
	perms   *permissions.Evaluator
	limiter ratelimit.Limiter
	engine  *ai.Engine
	voice   Transcripts
}

// NewInterviewsHandler wires the interview endpoints. limiter throttles
// interview creation per user; v may be nil when no voice provider is
// configured.
func NewInterviewsHandler(a *access.Layer, p *permissions.Evaluator, limiter ratelimit.Limiter, e *ai.Engine, v Transcripts) *InterviewsHandler {
	return &InterviewsHandler{access: a, perms: p, limiter: limiter, engine: e, voice: v}
}

type createInterviewRequest struct {
	JobInfoID string `json:"jobInfoId" validate:"required"`
}

// Create starts a new interview for one of the caller's job infos. The plan
// check runs before the rate limiter so denied plans do not spend tokens.
func (h *InterviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createInterviewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, msgInvalidRequest, http.StatusBadRequest)
		return
	}

	allowed, err := h.perms.CanCreateInterview(r.Context())
	if err != nil {
		internalError(w, "check interview permission", err)
		return
	}
	if !allowed {
		http.Error(w, msgPlanLimit, http.StatusForbidden)
		return
	}

	d, err := h.limiter.Allow(r.Context(), "interview:"+p.UserID)
	if err != nil {
		internalError(w, "interview rate limit", err)
		return
	}
	if !d.Allowed {
		denyRateLimited(w, d)
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

	ref, err := h.access.Interviews.Insert(r.Context(), job.ID)
	if err != nil {
		internalError(w, "create interview", err)
		return
	}
	writeJSON(w, map[string]string{"id": ref.ID, "jobInfoId": ref.ParentID}, http.StatusCreated)
}

// List returns the job info's interviews that reached the voice provider,
// most recently updated first.
func (h *InterviewsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.access.Interviews.ListByJobInfo(r.Context(), jobInfoID, p.UserID)
	if err != nil {
		internalError(w, "list interviews", err)
		return
	}
	out := make([]models.Interview, 0, len(list))
	for _, i := range list {
		if i.ChatID != nil {
			out = append(out, i)
		}
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *InterviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	i, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, i, http.StatusOK)
}

type updateInterviewRequest struct {
	Duration *string `json:"duration" validate:"omitempty,duration"`
	ChatID   *string `json:"chatId" validate:"omitempty,min=1,max=255"`
}

// Update records the running duration and the voice chat id of an interview.
func (h *InterviewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req updateInterviewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, validationMessage(err, msgInvalidRequest), http.StatusBadRequest)
		return
	}
	if req.Duration == nil && req.ChatID == nil {
		http.Error(w, msgInvalidRequest, http.StatusBadRequest)
		return
	}

	i, err := h.access.Interviews.Update(r.Context(), mux.Vars(r)["id"], p.UserID, models.InterviewUpdate{
		Duration: req.Duration,
		ChatID:   req.ChatID,
	})
	if err != nil {
		internalError(w, "update interview", err)
		return
	}
	if i == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}
	writeJSON(w, i, http.StatusOK)
}

// Feedback generates feedback for a finished interview from its voice
// transcript and stores it, replacing any previous feedback.
func (h *InterviewsHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	i, ok := h.load(w, r)
	if !ok {
		return
	}
	if i.ChatID == nil || *i.ChatID == "" {
		http.Error(w, msgNotCompleted, http.StatusBadRequest)
		return
	}
	if h.voice == nil {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}

	events, err := h.voice.ChatEvents(r.Context(), *i.ChatID)
	if errors.Is(err, voice.ErrNotConfigured) {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		logger.Warn("load interview transcript", slog.String("interview", i.ID), slog.Any("err", err))
		http.Error(w, msgInterviewFeedbackFail, http.StatusBadGateway)
		return
	}
	transcript, err := json.Marshal(voice.Transcript(events))
	if err != nil {
		internalError(w, "encode transcript", err)
		return
	}

	p, _ := principal(w, r)
	var userName string
	u, err := h.access.Users.Get(r.Context(), p.UserID)
	if err != nil {
		internalError(w, "load user", err)
		return
	}
	if u != nil {
		userName = u.Name
	}

	var job models.JobInfo
	if i.JobInfo != nil {
		job = *i.JobInfo
	}
	feedback, err := h.engine.InterviewFeedback(r.Context(), ai.InterviewInput{
		JobInfo:    job,
		UserName:   userName,
		Transcript: transcript,
	})
	if err != nil {
		if clientGone(r) {
			return
		}
		logger.Warn("generate interview feedback", slog.String("interview", i.ID), slog.Any("err", err))
		http.Error(w, msgInterviewFeedbackFail, http.StatusBadGateway)
		return
	}

	updated, err := h.access.Interviews.Update(r.Context(), i.ID, p.UserID, models.InterviewUpdate{Feedback: &feedback})
	if err != nil {
		internalError(w, "store interview feedback", err)
		return
	}
	if updated == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}
	writeJSON(w, updated, http.StatusOK)
}

// Messages returns the condensed voice transcript of an interview.
func (h *InterviewsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	i, ok := h.load(w, r)
	if !ok {
		return
	}
	if i.ChatID == nil || *i.ChatID == "" {
		writeJSON(w, []voice.Turn{}, http.StatusOK)
		return
	}
	if h.voice == nil {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}

	events, err := h.voice.ChatEvents(r.Context(), *i.ChatID)
	if errors.Is(err, voice.ErrNotConfigured) {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		logger.Warn("load interview transcript", slog.String("interview", i.ID), slog.Any("err", err))
		http.Error(w, "Error loading the interview transcript", http.StatusBadGateway)
		return
	}
	writeJSON(w, voice.Condense(events), http.StatusOK)
}

// load fetches the interview named by the route for the caller and writes
// the error response when it cannot.
func (h *InterviewsHandler) load(w http.ResponseWriter, r *http.Request) (*models.Interview, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	id := strings.TrimSpace(mux.Vars(r)["id"])
	i, err := h.access.Interviews.Get(r.Context(), id, p.UserID)
	if err != nil {
		internalError(w, "load interview", err)
		return nil, false
	}
	if i == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return nil, false
	}
	return i, true
}
