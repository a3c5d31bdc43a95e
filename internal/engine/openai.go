package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

// OpenAI talks to a local OpenAI-compatible server such as Ollama or
// llama.cpp. When a pull URL is configured, Initialize downloads the model
// through the Ollama API and Terminate unloads it.
type OpenAI struct {
	client openai.Client
	ollama *ollamaClient
	guard  Guard
	log    zerolog.Logger

	// initMu serializes Initialize calls. mu only guards the fields
	// below and is never held across a network call.
	initMu  sync.Mutex
	mu      sync.Mutex
	modelID string
	ready   bool
	loading bool
}

func NewOpenAI(cfg config.ModelConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	o := &OpenAI{
		client: openai.NewClient(opts...),
		log:    log.With().Str("component", "engine").Logger(),
	}
	if cfg.PullURL != "" {
		oc, err := newOllamaClient(cfg.PullURL, http.DefaultClient)
		if err != nil {
			o.log.Error().Err(err).Msg("Model pulling disabled")
		}
		o.ollama = oc
	}
	return o
}

func (o *OpenAI) Initialize(ctx context.Context, modelID string, progress ProgressFunc) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return fmt.Errorf("%w: empty model id", ErrInitFailed)
	}
	o.initMu.Lock()
	defer o.initMu.Unlock()

	o.mu.Lock()
	if o.ready && o.modelID == modelID {
		o.mu.Unlock()
		return nil
	}
	o.loading = true
	o.mu.Unlock()

	tracker := NewProgressTracker(progress)
	err := o.load(ctx, modelID, tracker)

	o.mu.Lock()
	o.loading = false
	if err == nil {
		o.modelID = modelID
		o.ready = true
	}
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	tracker.Finish("Model loaded")
	o.log.Info().Str("model", modelID).Msg("Model initialized")
	return nil
}

// load fetches and loads modelID. It runs without holding o.mu.
func (o *OpenAI) load(ctx context.Context, modelID string, tracker *ProgressTracker) error {
	tracker.Report(models.LoadProgress{Text: "Loading model " + modelID})

	if o.ollama != nil {
		if err := o.ollama.pull(ctx, modelID, tracker); err != nil {
			return err
		}
		if err := o.ollama.load(ctx, modelID); err != nil {
			return err
		}
	} else if _, err := o.client.Models.Get(ctx, modelID); err != nil {
		return err
	}
	return nil
}

func (o *OpenAI) StreamComplete(ctx context.Context, history []models.ChatMessage, opts GenerateOptions) (*Stream, error) {
	o.mu.Lock()
	ready, modelID := o.ready, o.modelID
	o.mu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}
	release, err := o.guard.Acquire()
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: toOpenAIMessages(history),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	if stream == nil {
		release()
		return nil, fmt.Errorf("chat completions streaming not available")
	}
	return NewStream(&chunkSource{stream: stream}, release), nil
}

func (o *OpenAI) Terminate(ctx context.Context) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return nil
	}
	modelID := o.modelID
	o.ready = false
	o.modelID = ""
	o.mu.Unlock()

	if o.ollama != nil {
		if err := o.ollama.unload(ctx, modelID); err != nil {
			return fmt.Errorf("failed to unload %s: %w", modelID, err)
		}
	}
	o.log.Info().Str("model", modelID).Msg("Model terminated")
	return nil
}

func (o *OpenAI) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// Loading reports whether Initialize is downloading or loading a model.
func (o *OpenAI) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

func (o *OpenAI) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modelID
}

func toOpenAIMessages(history []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// chunkSource adapts an SSE chat completion stream.
type chunkSource struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	frag   string
}

func (c *chunkSource) Next() bool {
	if !c.stream.Next() {
		return false
	}
	var b strings.Builder
	for _, choice := range c.stream.Current().Choices {
		b.WriteString(choice.Delta.Content)
	}
	c.frag = b.String()
	return true
}

func (c *chunkSource) Fragment() string { return c.frag }
func (c *chunkSource) Err() error       { return c.stream.Err() }
func (c *chunkSource) Close() error     { return c.stream.Close() }
