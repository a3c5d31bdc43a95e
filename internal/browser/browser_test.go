package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
)

var _ fetch.Source = (*Source)(nil)

func TestClampWait(t *testing.T) {
	assert.Equal(t, time.Duration(0), clampWait(-time.Second))
	assert.Equal(t, time.Second, clampWait(time.Second))
	assert.Equal(t, MaxTranscriptWait, clampWait(10*time.Second))
}

func TestSourceRequiresStartedManager(t *testing.T) {
	mgr := NewManager(config.BrowserConfig{TranscriptWait: time.Second})
	src := NewSource(mgr)

	_, err := src.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.NoError(t, mgr.Close())
	_, err = src.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, mgr.Start(context.Background()), ErrClosed)
}
