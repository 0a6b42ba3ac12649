package ai

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/garnizeh/prep/internal/metrics"
	"github.com/garnizeh/prep/pkg/models"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Generation kinds, used for metrics and logs.
const (
	KindQuestion          = "question"
	KindQuestionFeedback  = "question_feedback"
	KindResumeAnalysis    = "resume_analysis"
	KindInterviewFeedback = "interview_feedback"
)

type Config struct {
	// Timeout bounds a single generation. Zero means no limit besides the
	// caller's context.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Engine renders prompts, drives a Provider and checks structured output.
type Engine struct {
	provider Provider
	loader   *Loader
	cfg      Config
}

func NewEngine(provider Provider, loader *Loader, cfg Config) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if loader == nil {
		return nil, errors.New("schema loader is required")
	}
	if _, ok := loader.GetSchema(ResumeSchema); !ok {
		return nil, fmt.Errorf("schema %s not loaded", ResumeSchema)
	}
	return &Engine{provider: provider, loader: loader, cfg: cfg}, nil
}

// jobView is the job information prompts are rendered with.
type jobView struct {
	Title           string
	Description     string
	ExperienceLevel string
	UserName        string
}

func newJobView(j models.JobInfo) jobView {
	v := jobView{Description: j.Description, ExperienceLevel: j.ExperienceLevel.Label()}
	if j.Title != nil {
		v.Title = *j.Title
	}
	return v
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// generate runs one provider call with timeout, logging and metrics.
func (e *Engine) generate(ctx context.Context, kind string, req Request, fn func(string) error) (string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := e.provider.Stream(ctx, req, fn)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = "canceled"
	default:
		status = "error"
	}
	e.cfg.Metrics.Generation(kind, status)

	attrs := []any{
		slog.String("kind", kind),
		slog.String("provider", e.provider.Name()),
		slog.String("status", status),
		slog.Int64("latency_ms", time.Since(start).Milliseconds()),
	}
	if err != nil && status == "error" {
		logger.Warn("ai: generation failed", append(attrs, slog.Any("err", err))...)
	} else {
		logger.Debug("ai: generation finished", attrs...)
	}

	return out, err
}

// QuestionInput describes a question to generate.
type QuestionInput struct {
	JobInfo    models.JobInfo
	Previous   []models.Question
	Difficulty models.Difficulty
}

// StreamQuestion generates a new question for a job. Earlier questions are
// replayed as chat history, difficulty from the user and text from the
// assistant, so the model avoids repeating them.
func (e *Engine) StreamQuestion(ctx context.Context, in QuestionInput) *Stream[string] {
	return startStream(ctx, func(ctx context.Context, emit func(string) error) (string, error) {
		system, err := render("question.tmpl", newJobView(in.JobInfo))
		if err != nil {
			return "", err
		}

		msgs := make([]Message, 0, 2*len(in.Previous)+1)
		for _, q := range in.Previous {
			msgs = append(msgs,
				Message{Role: RoleUser, Content: string(q.Difficulty)},
				Message{Role: RoleAssistant, Content: q.Text},
			)
		}
		msgs = append(msgs, Message{Role: RoleUser, Content: string(in.Difficulty)})

		out, err := e.generate(ctx, KindQuestion, Request{System: system, Messages: msgs}, emit)
		if err != nil {
			return "", err
		}
		return nonEmpty(out)
	})
}

// StreamQuestionFeedback grades answer against question. The feedback opens
// with a "## Feedback (Rating: N/10)" heading.
func (e *Engine) StreamQuestionFeedback(ctx context.Context, question, answer string) *Stream[string] {
	return startStream(ctx, func(ctx context.Context, emit func(string) error) (string, error) {
		system, err := render("question_feedback.tmpl", map[string]any{"Question": question})
		if err != nil {
			return "", err
		}
		out, err := e.generate(ctx, KindQuestionFeedback, Request{
			System:   system,
			Messages: []Message{{Role: RoleUser, Content: answer}},
		}, emit)
		if err != nil {
			return "", err
		}
		return nonEmpty(out)
	})
}

// StreamResumeAnalysis scores resumeText against a job. Fragments are the
// raw JSON as the model writes it; the result is the validated object.
func (e *Engine) StreamResumeAnalysis(ctx context.Context, job models.JobInfo, resumeText string) *Stream[*ResumeAnalysis] {
	return startStream(ctx, func(ctx context.Context, emit func(string) error) (*ResumeAnalysis, error) {
		system, err := render("resume.tmpl", newJobView(job))
		if err != nil {
			return nil, err
		}
		schema, _ := e.loader.Raw(ResumeSchema)

		out, err := e.generate(ctx, KindResumeAnalysis, Request{
			System:   system,
			Messages: []Message{{Role: RoleUser, Content: resumeText}},
			Schema:   schema,
		}, emit)
		if err != nil {
			return nil, err
		}

		r, err := ParseResumeAnalysis(ctx, e.loader, out)
		if err != nil {
			logger.Warn("ai: resume analysis rejected", slog.Any("err", err), slog.Int("chars", len(out)))
			e.cfg.Metrics.Generation(KindResumeAnalysis, "invalid")
			return nil, err
		}
		return r, nil
	})
}

// InterviewInput describes a finished voice interview.
type InterviewInput struct {
	JobInfo  models.JobInfo
	UserName string
	// Transcript is the condensed transcript encoded as JSON.
	Transcript []byte
}

// InterviewFeedback writes markdown feedback for a whole interview. It does
// not stream.
func (e *Engine) InterviewFeedback(ctx context.Context, in InterviewInput) (string, error) {
	view := newJobView(in.JobInfo)
	view.UserName = in.UserName

	system, err := render("interview_feedback.tmpl", view)
	if err != nil {
		return "", err
	}

	out, err := e.generate(ctx, KindInterviewFeedback, Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: string(in.Transcript)}},
	}, nil)
	if err != nil {
		return "", err
	}
	return nonEmpty(out)
}

// nonEmpty trims model output and rejects blank text.
func nonEmpty(out string) (string, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}
