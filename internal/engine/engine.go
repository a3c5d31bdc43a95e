// Package engine wraps the local language model behind a small streaming
// interface.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

var (
	ErrNotInitialized = errors.New("engine: model not initialized")
	ErrBusy           = errors.New("engine: a generation is already running")
	ErrInitFailed     = errors.New("engine: model initialization failed")
)

// GenerateOptions are the sampling parameters of one completion.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// ProgressFunc receives model load progress.
type ProgressFunc func(models.LoadProgress)

// Adapter is a loaded model that can stream completions.
type Adapter interface {
	// Initialize loads modelID, reporting progress. Calling it again with
	// the loaded model is a no-op.
	Initialize(ctx context.Context, modelID string, progress ProgressFunc) error
	// StreamComplete starts a completion over the conversation. Only one
	// stream may be open at a time.
	StreamComplete(ctx context.Context, history []models.ChatMessage, opts GenerateOptions) (*Stream, error)
	// Terminate releases the model. It is a no-op when nothing is loaded.
	Terminate(ctx context.Context) error
	Ready() bool
	// Model is the loaded model ID, empty when not ready.
	Model() string
}

// FragmentSource is the iterator a Stream is built on.
type FragmentSource interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// Stream yields completion fragments in order. It is finite and cannot
// be restarted.
type Stream struct {
	src     FragmentSource
	cur     string
	err     error
	done    bool
	once    sync.Once
	release func()
}

// NewStream wraps src. release runs exactly once when the stream ends or
// is closed.
func NewStream(src FragmentSource, release func()) *Stream {
	return &Stream{src: src, release: release}
}

// Next advances to the next non-empty fragment.
func (s *Stream) Next() bool {
	if s.src == nil || s.done {
		return false
	}
	for s.src.Next() {
		if f := s.src.Fragment(); f != "" {
			s.cur = f
			return true
		}
	}
	s.err = s.src.Err()
	s.done = true
	s.finish()
	return false
}

func (s *Stream) Current() string { return s.cur }

func (s *Stream) Err() error { return s.err }

func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if s.src != nil {
			err = s.src.Close()
		}
		if s.release != nil {
			s.release()
		}
	})
	return err
}

func (s *Stream) finish() { _ = s.Close() }

// Collect drains a stream into one string and closes it.
func Collect(s *Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Current())
	}
	return b.String(), s.Err()
}

// Guard admits one generation at a time.
type Guard struct {
	busy atomic.Bool
}

// Acquire returns a release func, or ErrBusy.
func (g *Guard) Acquire() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(func() { g.busy.Store(false) }) }, nil
}

func (g *Guard) Busy() bool { return g.busy.Load() }
