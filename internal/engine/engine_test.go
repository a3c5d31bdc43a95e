package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

type sliceSource struct {
	frags  []string
	i      int
	err    error
	closed int
}

func (s *sliceSource) Next() bool {
	if s.i >= len(s.frags) {
		return false
	}
	s.i++
	return true
}
func (s *sliceSource) Fragment() string { return s.frags[s.i-1] }
func (s *sliceSource) Err() error       { return s.err }
func (s *sliceSource) Close() error     { s.closed++; return nil }

func TestStreamSkipsEmptyFragmentsAndReleasesOnce(t *testing.T) {
	src := &sliceSource{frags: []string{"Hel", "", "lo"}}
	released := 0
	s := NewStream(src, func() { released++ })

	var got []string
	for s.Next() {
		got = append(got, s.Current())
	}
	assert.Equal(t, []string{"Hel", "lo"}, got)
	assert.NoError(t, s.Err())
	assert.False(t, s.Next())
	s.Close()
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, src.closed)
}

func TestCollect(t *testing.T) {
	boom := errors.New("boom")
	text, err := Collect(NewStream(&sliceSource{frags: []string{"a", "b"}, err: boom}, nil))
	assert.Equal(t, "ab", text)
	assert.ErrorIs(t, err, boom)
}

func TestGuard(t *testing.T) {
	var g Guard
	release, err := g.Acquire()
	require.NoError(t, err)
	assert.True(t, g.Busy())

	_, err = g.Acquire()
	assert.ErrorIs(t, err, ErrBusy)

	release()
	release()
	assert.False(t, g.Busy())
	_, err = g.Acquire()
	assert.NoError(t, err)
}

func TestProgressTrackerMonotonic(t *testing.T) {
	var seen []float64
	tr := NewProgressTracker(func(p models.LoadProgress) { seen = append(seen, p.Fraction) })

	tr.Report(models.LoadProgress{Fraction: 0.2})
	tr.Report(models.LoadProgress{Fraction: 0.1})
	tr.Report(models.LoadProgress{Fraction: -1})
	tr.Report(models.LoadProgress{Fraction: 0.7})
	tr.Report(models.LoadProgress{Fraction: 3})
	tr.Finish("done")

	assert.Equal(t, []float64{0.2, 0.2, 0.2, 0.7, 1, 1}, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 1.0, tr.Last())
}
