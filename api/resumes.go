package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/metrics"
	"github.com/garnizeh/prep/internal/permissions"
)

const (
	msgInvalidRequest = "Invalid request"
	msgFileTooLarge   = "File size exceeds 10MB limit"
	msgFileType       = "Please upload a PDF, Word document, or text file"
	msgResumeFailed   = "Error analyzing your resume"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

type ResumesHandler struct {
	access  *access.Layer
	perms   *permissions.Evaluator
	engine  *ai.Engine
	metrics *metrics.Metrics
}

func NewResumesHandler(a *access.Layer, p *permissions.Evaluator, e *ai.Engine, m *metrics.Metrics) *ResumesHandler {
	return &ResumesHandler{access: a, perms: p, engine: e, metrics: m}
}

// Analyze scores an uploaded resume against one of the caller's job infos.
// The JSON object streams as text events and is sent validated as a single
// data event at the end.
func (h *ResumesHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ai.MaxResumeSize+formOverhead)
	if err := r.ParseMultipartForm(ai.MaxResumeSize + formOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, msgFileTooLarge, http.StatusBadRequest)
			return
		}
		http.Error(w, msgInvalidRequest, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	jobInfoID := strings.TrimSpace(r.FormValue("jobInfoId"))
	file, header, err := r.FormFile("resumeFile")
	if err != nil || jobInfoID == "" {
		http.Error(w, msgInvalidRequest, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > ai.MaxResumeSize {
		http.Error(w, msgFileTooLarge, http.StatusBadRequest)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if !ai.SupportedResumeType(mimeType) {
		http.Error(w, msgFileType, http.StatusBadRequest)
		return
	}

	job, err := h.access.JobInfos.Get(r.Context(), jobInfoID, p.UserID)
	if err != nil {
		internalError(w, "load job info", err)
		return
	}
	if job == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}

	allowed, err := h.perms.CanRunResumeAnalysis(r.Context())
	if err != nil {
		internalError(w, "check resume permission", err)
		return
	}
	if !allowed {
		http.Error(w, msgPlanLimit, http.StatusForbidden)
		return
	}

	text, err := ai.ExtractResumeText(file, mimeType)
	if err != nil {
		logger.Warn("extract resume text", slog.Any("err", err), slog.String("type", mimeType))
		http.Error(w, msgFileType, http.StatusBadRequest)
		return
	}
	if text == "" {
		http.Error(w, "The resume appears to be empty", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	stream := h.engine.StreamResumeAnalysis(ctx, *job, text)
	streamGeneration(w, r, h.metrics, "analyze_resume", msgResumeFailed, stream, cancel,
		func(_ context.Context, a *ai.ResumeAnalysis) (any, error) {
			return a, nil
		})
}
