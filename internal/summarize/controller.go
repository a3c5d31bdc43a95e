// Package summarize turns extracted page content into a streamed summary.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/sink"
)

// User facing messages.
const (
	ErrorMessage        = "Error: Could not generate response. Please try again."
	InsufficientMessage = "Error: Insufficient content to summarize on this page."
	FetchErrorMessage   = "Error: Could not load the page."
)

var (
	ErrBusy                = errors.New("summarize: a request is already in progress")
	ErrInsufficientContent = errors.New("summarize: insufficient content")
	ErrGeneration          = errors.New("summarize: generation failed")
	ErrEmptyQuestion       = errors.New("summarize: empty question")
)

// chatWindow is the prior turn plus the current user message.
const chatWindow = 3

// Recorder persists finished summaries.
type Recorder interface {
	AddHistory(userID *int64, url, title, body, summary string) (*models.HistoryEntry, error)
}

// Options tune prompt building and generation.
type Options struct {
	Prompt   config.PromptConfig
	Generate engine.GenerateOptions
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Prompt: cfg.Prompt,
		Generate: engine.GenerateOptions{
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		},
	}
}

// Controller runs one summarization or chat turn at a time against the
// engine and reports every step to its presenter.
type Controller struct {
	engine    engine.Adapter
	view      presenter.Presenter
	opts      Options
	source    fetch.Source
	extractor *extract.Extractor
	recorder  Recorder
	sink      sink.Sink
	log       zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	state        State
	session      *Session
	content      models.ExtractedContent
	lastActivity time.Time
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithSource lets Summarize fetch and extract pages itself.
func WithSource(src fetch.Source, x *extract.Extractor) Option {
	return func(c *Controller) {
		c.source = src
		c.extractor = x
	}
}

func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }
func WithSink(s sink.Sink) Option    { return func(c *Controller) { c.sink = s } }

func New(eng engine.Adapter, view presenter.Presenter, opts Options, options ...Option) *Controller {
	if view == nil {
		view = presenter.Discard{}
	}
	c := &Controller{
		engine:  eng,
		view:    view,
		opts:    opts,
		sink:    sink.Nop{},
		log:     log.With().Str("component", "summarize").Logger(),
		now:     time.Now,
		session: NewSession(),
	}
	for _, o := range options {
		o(c)
	}
	c.lastActivity = c.now()
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the current conversation.
func (c *Controller) History() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.History()
}

// SessionID identifies the current conversation.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// LastActivity is when the controller last finished or started work.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Busy reports whether a request is in progress.
func (c *Controller) Busy() bool { return c.State() != Idle }

// Begin starts a summarize request. Triggers while not idle are rejected.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrBusy
	}
	c.state = ExtractingContent
	c.lastActivity = c.now()
	c.view.SetBusy(true)
	return nil
}

// Fail ends a request that could not get its content, showing msg.
func (c *Controller) Fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.settle(Error, msg)
}

// HandleContent builds the prompt from extracted content and streams the
// summary. Content arriving while idle starts a request of its own.
func (c *Controller) HandleContent(ctx context.Context, content models.ExtractedContent) error {
	c.mu.Lock()
	switch c.state {
	case Idle:
		c.state = ExtractingContent
		c.view.SetBusy(true)
	case ExtractingContent:
	default:
		c.mu.Unlock()
		return ErrBusy
	}

	body := extract.Truncate(strings.TrimSpace(content.Text()), c.opts.Prompt.MaxChars)
	if content.Body == nil || utf8.RuneCountInString(body) < c.opts.Prompt.MinChars {
		c.log.Info().Str("url", content.SourceURL).Int("chars", utf8.RuneCountInString(body)).Msg("Insufficient content")
		c.settle(Error, InsufficientMessage)
		c.mu.Unlock()
		return ErrInsufficientContent
	}

	c.state = BuildingPrompt
	c.content = content
	prompt := BuildPrompt(c.opts.Prompt.Template, body, c.opts.Prompt.MaxChars)
	c.session.Reset()
	c.session.push(models.RoleUser, prompt)
	c.mu.Unlock()

	return c.stream(ctx, true)
}

// Ask sends a follow-up question in the current conversation.
func (c *Controller) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = BuildingPrompt
	c.lastActivity = c.now()
	c.view.SetBusy(true)
	c.session.push(models.RoleUser, question)
	c.session.keepLast(chatWindow)
	c.content = models.ExtractedContent{}
	c.mu.Unlock()

	return c.stream(ctx, false)
}

// Summarize fetches url, extracts it and summarizes the result.
func (c *Controller) Summarize(ctx context.Context, url string) error {
	if c.source == nil || c.extractor == nil {
		return fmt.Errorf("summarize: no page source configured")
	}
	if err := c.Begin(); err != nil {
		return err
	}
	page, err := c.source.Fetch(ctx, url)
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("Failed to fetch page")
		c.Fail(FetchErrorMessage)
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return c.HandleContent(ctx, c.extractor.Extract(ctx, page))
}

// SummarizeText produces a summary of text without streaming it to the
// presenter or touching the conversation.
func (c *Controller) SummarizeText(ctx context.Context, text string) (string, error) {
	body := extract.Truncate(strings.TrimSpace(text), c.opts.Prompt.MaxChars)
	if utf8.RuneCountInString(body) < c.opts.Prompt.MinChars {
		return "", ErrInsufficientContent
	}
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.state = Streaming
	c.lastActivity = c.now()
	c.mu.Unlock()

	history := []models.ChatMessage{{
		Role:    models.RoleUser,
		Content: BuildPrompt(c.opts.Prompt.Template, body, c.opts.Prompt.MaxChars),
	}}
	var summary string
	s, err := c.engine.StreamComplete(ctx, history, c.opts.Generate)
	if err == nil {
		summary, err = engine.Collect(s)
	}

	c.mu.Lock()
	c.state = Idle
	c.lastActivity = c.now()
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return summary, nil
}

func (c *Controller) stream(ctx context.Context, record bool) error {
	c.mu.Lock()
	history := c.session.History()
	c.state = Streaming
	c.mu.Unlock()

	s, err := c.engine.StreamComplete(ctx, history, c.opts.Generate)
	if err != nil {
		return c.streamFailed(err)
	}
	defer s.Close()

	var acc strings.Builder
	for s.Next() {
		acc.WriteString(s.Current())
		c.view.Update(acc.String())
	}
	if err := s.Err(); err != nil {
		return c.streamFailed(err)
	}

	answer := acc.String()
	c.mu.Lock()
	c.session.push(models.RoleAssistant, answer)
	content := c.content
	c.mu.Unlock()

	if record {
		c.record(content, answer)
	}

	c.mu.Lock()
	c.state = Done
	c.view.Done(answer)
	c.settle(Idle, "")
	c.mu.Unlock()
	return nil
}

func (c *Controller) streamFailed(err error) error {
	c.log.Error().Err(err).Msg("Generation failed")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.Prompt.RevertOnError {
		c.session.popUser()
	}
	c.settle(Error, ErrorMessage)
	return fmt.Errorf("%w: %v", ErrGeneration, err)
}

// settle reports the outcome and returns to Idle. Callers hold c.mu.
func (c *Controller) settle(outcome State, msg string) {
	c.state = outcome
	if outcome == Error {
		c.view.ShowError(msg)
	}
	c.state = Idle
	c.lastActivity = c.now()
	c.view.SetBusy(false)
}

func (c *Controller) record(content models.ExtractedContent, summary string) {
	if c.recorder != nil {
		if _, err := c.recorder.AddHistory(nil, content.SourceURL, content.Title, content.Text(), summary); err != nil {
			c.log.Warn().Err(err).Str("url", content.SourceURL).Msg("Failed to record summary")
		}
	}
	c.sink.Submit(sink.Record{
		URL:     content.SourceURL,
		Title:   content.Title,
		Body:    content.Text(),
		Summary: summary,
	})
}
