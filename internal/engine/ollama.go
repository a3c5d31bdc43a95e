package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// residentFor is how long a loaded model stays in memory without use.
const residentFor = 30 * time.Minute

// ollamaClient covers the few native Ollama endpoints the OpenAI
// compatible API lacks: pulling and explicit load/unload.
type ollamaClient struct {
	api *api.Client
}

func newOllamaClient(baseURL string, c *http.Client) (*ollamaClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid pull url %q: %w", baseURL, err)
	}
	return &ollamaClient{api: api.NewClient(u, c)}, nil
}

// pull streams the download progress into the tracker.
// Download progress fills 0..0.9; the rest is left for loading.
func (c *ollamaClient) pull(ctx context.Context, modelID string, tracker *ProgressTracker) error {
	return c.api.Pull(ctx, &api.PullRequest{Model: modelID}, func(ev api.ProgressResponse) error {
		p := models.LoadProgress{Text: ev.Status}
		if ev.Total > 0 {
			p.Fraction = 0.9 * float64(ev.Completed) / float64(ev.Total)
			p.Text = fmt.Sprintf("%s (%d%%)", ev.Status, ev.Completed*100/ev.Total)
		}
		if ev.Status == "success" {
			p.Fraction = 0.9
		}
		tracker.Report(p)
		return nil
	})
}

// load asks Ollama to keep the model resident.
func (c *ollamaClient) load(ctx context.Context, modelID string) error {
	return c.keepAlive(ctx, modelID, residentFor)
}

// unload evicts the model immediately.
func (c *ollamaClient) unload(ctx context.Context, modelID string) error {
	return c.keepAlive(ctx, modelID, 0)
}

func (c *ollamaClient) keepAlive(ctx context.Context, modelID string, d time.Duration) error {
	req := &api.GenerateRequest{Model: modelID, KeepAlive: &api.Duration{Duration: d}}
	return c.api.Generate(ctx, req, func(api.GenerateResponse) error { return nil })
}
