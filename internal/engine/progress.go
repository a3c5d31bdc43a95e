package engine

import (
	"sync"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// ProgressTracker forwards load progress, never letting the fraction go
// backwards or leave [0,1].
type ProgressTracker struct {
	mu   sync.Mutex
	last float64
	fn   ProgressFunc
}

func NewProgressTracker(fn ProgressFunc) *ProgressTracker {
	return &ProgressTracker{fn: fn}
}

// Report clamps p and forwards it.
func (t *ProgressTracker) Report(p models.LoadProgress) {
	t.mu.Lock()
	switch {
	case p.Fraction < 0 || p.Fraction != p.Fraction:
		p.Fraction = 0
	case p.Fraction > 1:
		p.Fraction = 1
	}
	if p.Fraction < t.last {
		p.Fraction = t.last
	}
	t.last = p.Fraction
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Finish reports completion.
func (t *ProgressTracker) Finish(text string) {
	t.Report(models.LoadProgress{Fraction: 1, Text: text})
}

func (t *ProgressTracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
