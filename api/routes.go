package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/config"
	"github.com/garnizeh/prep/internal/metrics"
	"github.com/garnizeh/prep/internal/permissions"
	"github.com/garnizeh/prep/internal/ratelimit"
	"github.com/garnizeh/prep/internal/webhook"
)

// VoiceClient is what the API needs from the voice provider.
type VoiceClient interface {
	Transcripts
	Tokens
}

// Deps are the services the routes are built on. Voice, Webhook, Metrics,
// GeneralLimiter and Health are optional.
type Deps struct {
	Access           *access.Layer
	Permissions      *permissions.Evaluator
	Engine           *ai.Engine
	Voice            VoiceClient
	Webhook          *webhook.Verifier
	InterviewLimiter ratelimit.Limiter
	GeneralLimiter   ratelimit.Limiter
	Metrics          *metrics.Metrics
	Health           func(ctx context.Context) error
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(CORSMiddleware(cfg.CORSOrigins))

	// Create handlers
	systemHandler := &SystemHandler{Ping: deps.Health}
	webhooksHandler := NewWebhooksHandler(deps.Access, deps.Webhook)
	jobInfosHandler := NewJobInfosHandler(deps.Access)
	questionsHandler := NewQuestionsHandler(deps.Access, deps.Permissions, deps.Engine, deps.Metrics)
	resumesHandler := NewResumesHandler(deps.Access, deps.Permissions, deps.Engine, deps.Metrics)
	var transcripts Transcripts
	var tokens Tokens
	if deps.Voice != nil {
		transcripts, tokens = deps.Voice, deps.Voice
	}
	interviewsHandler := NewInterviewsHandler(deps.Access, deps.Permissions, deps.InterviewLimiter, deps.Engine, transcripts)
	voiceHandler := NewVoiceHandler(tokens)
	meHandler := NewMeHandler(deps.Access, deps.Permissions)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/api/webhooks/clerk", webhooksHandler.Identity).Methods("POST")
	r.HandleFunc("/v1/webhooks/identity", webhooksHandler.Identity).Methods("POST")
	// Preflight requests never reach a method-restricted route.
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	apiV1.Use(RateLimitMiddleware(deps.GeneralLimiter))

	// AI streaming endpoints
	streams := apiV1.NewRoute().Subrouter()
	streams.Use(TimeoutMiddleware(cfg.StreamTimeout))
	streams.HandleFunc("/ai/questions/generate-question", questionsHandler.GenerateQuestion).Methods("POST")
	streams.HandleFunc("/ai/questions/generate-feedback", questionsHandler.GenerateFeedback).Methods("POST")
	streams.HandleFunc("/ai/resumes/analyze", resumesHandler.Analyze).Methods("POST")
	streams.HandleFunc("/interviews/{id}/feedback", interviewsHandler.Feedback).Methods("POST")

	v1 := apiV1.NewRoute().Subrouter()
	v1.Use(TimeoutMiddleware(cfg.APITimeout))

	// Job infos endpoints
	v1.HandleFunc("/job-infos", jobInfosHandler.Create).Methods("POST")
	v1.HandleFunc("/job-infos", jobInfosHandler.List).Methods("GET")
	v1.HandleFunc("/job-infos/{id}", jobInfosHandler.Get).Methods("GET")
	v1.HandleFunc("/job-infos/{id}", jobInfosHandler.Update).Methods("PUT")
	v1.HandleFunc("/job-infos/{id}/questions", questionsHandler.List).Methods("GET")
	v1.HandleFunc("/job-infos/{id}/interviews", interviewsHandler.List).Methods("GET")

	// Questions endpoints
	v1.HandleFunc("/questions/{id}", questionsHandler.Get).Methods("GET")

	// Interviews endpoints
	v1.HandleFunc("/interviews", interviewsHandler.Create).Methods("POST")
	v1.HandleFunc("/interviews/{id}", interviewsHandler.Get).Methods("GET")
	v1.HandleFunc("/interviews/{id}", interviewsHandler.Update).Methods("PATCH")
	v1.HandleFunc("/interviews/{id}/messages", interviewsHandler.Messages).Methods("GET")

	v1.HandleFunc("/voice/access-token", voiceHandler.AccessToken).Methods("GET")
	v1.HandleFunc("/me", meHandler.Get).Methods("GET")

	return r
}
