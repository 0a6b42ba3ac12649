package ai

import "context"

// Stream carries a generation in two parts: text fragments while the
// provider produces them, then a single result once it is done.
//
// Consumers range over Chunks until it is closed and then call Result.
// Cancelling the context passed to the producing call stops the generation.
type Stream[T any] struct {
	chunks chan string
	done   chan struct{}
	result T
	err    error
	sent   bool
}

func startStream[T any](ctx context.Context, run func(ctx context.Context, emit func(string) error) (T, error)) *Stream[T] {
	s := &Stream[T]{
		chunks: make(chan string),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.chunks)

		s.result, s.err = run(ctx, func(chunk string) error {
			select {
			case s.chunks <- chunk:
				s.sent = true
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return s
}

// Chunks returns the fragment channel. It is closed when generation ends.
func (s *Stream[T]) Chunks() <-chan string {
	return s.chunks
}

// Result blocks until the generation finished and returns its outcome.
func (s *Stream[T]) Result() (T, error) {
	<-s.done
	return s.result, s.err
}

// Started reports whether any fragment was delivered. Only meaningful after
// Result returned.
func (s *Stream[T]) Started() bool {
	<-s.done
	return s.sent
}
