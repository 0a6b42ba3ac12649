package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/garnizeh/prep/internal/ai"
	"github.com/garnizeh/prep/internal/metrics"
)

// SSE event names.
const (
	eventText  = "text"
	eventData  = "data"
	eventError = "error"
	eventDone  = "done"
)

// sseWriter writes server-sent events. Every payload is JSON encoded so
// multi-line text stays on one data line.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

type errorPayload struct {
	Message string `json:"message"`
}

// streamGeneration forwards a generation to the client as SSE.
//
// Nothing is written until the first fragment arrives, so a provider failure
// before any output becomes a plain 502. Once streaming, failures become an
// error event. finish runs only when the provider completed and the client is
// still connected; a client that left at any point before that gets nothing
// persisted. Its context is detached from the request so a disconnect during
// the write does not cut it short. The payload it returns is sent as a data
// event. cancel must cancel the context the stream was started with.
func streamGeneration[T any](
	w http.ResponseWriter,
	r *http.Request,
	m *metrics.Metrics,
	endpoint string,
	failMsg string,
	s *ai.Stream[T],
	cancel context.CancelFunc,
	finish func(ctx context.Context, result T) (any, error),
) {
	defer cancel()

	first, ok := <-s.Chunks()
	if !ok {
		if _, err := s.Result(); err != nil {
			if clientGone(r) {
				return
			}
			logger.Warn("generation failed before streaming", slog.String("endpoint", endpoint), slog.Any("err", err))
			http.Error(w, failMsg, http.StatusBadGateway)
			return
		}
	}

	done := m.StreamOpened(endpoint)
	defer done()

	sse, err := newSSEWriter(w)
	if err != nil {
		cancel()
		for range s.Chunks() {
		}
		internalError(w, "open event stream", err)
		return
	}

	writeFailed := false
	send := func(chunk string) {
		if writeFailed {
			return
		}
		if err := sse.event(eventText, chunk); err != nil {
			writeFailed = true
			cancel()
		}
	}
	if ok {
		send(first)
	}
	for chunk := range s.Chunks() {
		send(chunk)
	}

	result, err := s.Result()
	if writeFailed || clientGone(r) {
		logger.Info("client left during generation", slog.String("endpoint", endpoint))
		return
	}
	if err != nil {
		logger.Warn("generation failed while streaming", slog.String("endpoint", endpoint), slog.Any("err", err))
		msg := failMsg
		if errors.Is(err, ai.ErrInvalidObject) {
			msg = "The analysis could not be completed. Please try again."
		}
		_ = sse.event(eventError, errorPayload{Message: msg})
		return
	}

	if finish != nil {
		payload, err := finish(context.WithoutCancel(r.Context()), result)
		if err != nil {
			logger.Error("finish generation", slog.String("endpoint", endpoint), slog.Any("err", err))
			_ = sse.event(eventError, errorPayload{Message: failMsg})
			return
		}
		if payload != nil {
			_ = sse.event(eventData, payload)
		}
	}
	_ = sse.event(eventDone, struct{}{})
}

// clientGone reports whether the client disconnected, as opposed to the
// request running out of time.
func clientGone(r *http.Request) bool {
	return errors.Is(r.Context().Err(), context.Canceled)
}
