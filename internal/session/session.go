package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eventai/internal/generator"
	"eventai/internal/models"
)

// ErrBusy is returned when a generation is already in flight.
var ErrBusy = errors.New("a generation is already running")

// Generator starts a background generation.
type Generator interface {
	Start(ctx context.Context, req models.GenerationRequest) *generator.Task
}

// Committer hands ICS text to the local calendar application.
type Committer interface {
	Commit(ctx context.Context, icsText string) error
}

// Publisher pushes ICS text to a remote calendar.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, icsText string) error
}

// Session is the state shared by a user-facing surface: the current ICS text,
// the last error, and whether a generation is running.
type Session struct {
	logger     *slog.Logger
	generator  Generator
	handoff    Committer
	publishers []Publisher

	mu      sync.Mutex
	busy    bool
	text    string
	lastErr error
}

// New creates a Session. Publishers run after the local hand-off.
func New(logger *slog.Logger, gen Generator, handoff Committer, publishers ...Publisher) *Session {
	return &Session{
		logger:     logger,
		generator:  gen,
		handoff:    handoff,
		publishers: publishers,
	}
}

// Generate starts a generation unless one is already running. When the task
// completes, the session stores its text or error before Done is observed by
// the caller.
func (s *Session) Generate(ctx context.Context, req models.GenerationRequest) (*generator.Task, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	s.logger.Debug("Starting generation.", "image", req.HasImage(), "reminder", req.ReminderText != "")
	inner := s.generator.Start(ctx, req)

	// Wrap the task so the session is updated before waiters wake up.
	outer := generator.Wrap(inner, func(res models.GenerationResult) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.busy = false
		if res.OK() {
			s.text = res.ICSText
			s.lastErr = nil
		} else {
			s.lastErr = res.Err
			s.logger.Error("Generation failed", "error", res.Err)
		}
	})
	return outer, nil
}

// Busy reports whether a generation is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Text returns the current ICS text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// SetText replaces the current ICS text, e.g. after the user edited it.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

// LastError returns the error of the last failed generation, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// AddToCalendar hands the current text to the local calendar application and
// then to every publisher. All failures are returned together; the text is
// kept either way.
func (s *Session) AddToCalendar(ctx context.Context) error {
	text := s.Text()

	var errs []error
	if s.handoff != nil {
		if err := s.handoff.Commit(ctx, text); err != nil {
			s.logger.Error("Calendar hand-off failed", "error", err)
			errs = append(errs, err)
		}
	}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, text); err != nil {
			s.logger.Error("Failed to publish event", "publisher", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		s.logger.Info("Published event.", "publisher", p.Name())
	}
	return errors.Join(errs...)
}
