// Package enginetest provides a scripted engine for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Scripted is an engine.Adapter that replays canned fragments.
type Scripted struct {
	// Fragments are yielded by every stream, in order.
	Fragments []string
	// FailAfter, when >= 0, ends the stream with StreamErr after that
	// many fragments.
	FailAfter int
	StreamErr error
	// StartErr is returned by StreamComplete itself.
	StartErr error
	InitErr  error
	// Progress is reported during Initialize before the final 1.0.
	Progress []models.LoadProgress
	// Gate, when set, blocks each stream before its first fragment until
	// closed.
	Gate chan struct{}

	guard engine.Guard

	mu         sync.Mutex
	ready      bool
	modelID    string
	calls      [][]models.ChatMessage
	options    []engine.GenerateOptions
	terminated int
	inits      int
}

// New returns a Scripted engine that never fails.
func New(fragments ...string) *Scripted {
	return &Scripted{Fragments: fragments, FailAfter: -1}
}

// NewReady returns a Scripted engine already initialized with "test-model".
func NewReady(fragments ...string) *Scripted {
	s := New(fragments...)
	s.ready = true
	s.modelID = "test-model"
	return s
}

func (s *Scripted) Initialize(ctx context.Context, modelID string, progress engine.ProgressFunc) error {
	s.mu.Lock()
	s.inits++
	s.mu.Unlock()
	if s.InitErr != nil {
		return s.InitErr
	}
	tracker := engine.NewProgressTracker(progress)
	for _, p := range s.Progress {
		tracker.Report(p)
	}
	s.mu.Lock()
	s.ready = true
	s.modelID = modelID
	s.mu.Unlock()
	tracker.Finish("Model loaded")
	return nil
}

func (s *Scripted) StreamComplete(ctx context.Context, history []models.ChatMessage, opts engine.GenerateOptions) (*engine.Stream, error) {
	if !s.Ready() {
		return nil, engine.ErrNotInitialized
	}
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	release, err := s.guard.Acquire()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, append([]models.ChatMessage(nil), history...))
	s.options = append(s.options, opts)
	s.mu.Unlock()
	return engine.NewStream(&source{s: s, ctx: ctx}, release), nil
}

func (s *Scripted) Terminate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.ready = false
	s.modelID = ""
	s.terminated++
	return nil
}

func (s *Scripted) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Scripted) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// Busy reports whether a stream is open.
func (s *Scripted) Busy() bool { return s.guard.Busy() }

// Calls returns a copy of every history passed to StreamComplete.
func (s *Scripted) Calls() [][]models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]models.ChatMessage(nil), s.calls...)
}

// Options returns the generation options of every call.
func (s *Scripted) Options() []engine.GenerateOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.GenerateOptions(nil), s.options...)
}

func (s *Scripted) Terminated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *Scripted) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

type source struct {
	s     *Scripted
	ctx   context.Context
	i     int
	err   error
	gated bool
}

func (src *source) Next() bool {
	if !src.gated && src.s.Gate != nil {
		src.gated = true
		select {
		case <-src.s.Gate:
		case <-src.ctx.Done():
			src.err = src.ctx.Err()
			return false
		}
	}
	if src.ctx.Err() != nil {
		src.err = src.ctx.Err()
		return false
	}
	if src.s.FailAfter >= 0 && src.i >= src.s.FailAfter {
		src.err = src.s.StreamErr
		return false
	}
	if src.i >= len(src.s.Fragments) {
		return false
	}
	src.i++
	return true
}

func (src *source) Fragment() string { return src.s.Fragments[src.i-1] }
func (src *source) Err() error       { return src.err }
func (src *source) Close() error     { return nil }
