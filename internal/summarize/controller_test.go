package summarize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/engine/enginetest"
	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/sink"
)

// recordingView captures every presenter call in order.
type recordingView struct {
	mu      sync.Mutex
	updates []string
	done    []string
	errors  []string
	busy    []bool
}

func (v *recordingView) Update(a string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.updates = append(v.updates, a)
}

func (v *recordingView) Done(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.done = append(v.done, s)
}

func (v *recordingView) ShowError(m string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, m)
}

func (v *recordingView) SetBusy(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = append(v.busy, b)
}

func (v *recordingView) SetProgress(models.LoadProgress) {}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

func (r *fakeRecorder) AddHistory(userID *int64, url, title, body, summary string) (*models.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := models.HistoryEntry{URL: url, Title: title, Body: body, Summary: summary}
	r.entries = append(r.entries, e)
	return &e, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []sink.Record
}

func (s *fakeSink) Submit(r sink.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func testOptions() Options {
	return Options{
		Prompt: config.PromptConfig{
			MaxChars:      4000,
			MinChars:      50,
			Template:      "Summarize:\n%s",
			RevertOnError: true,
		},
		Generate: engine.GenerateOptions{Temperature: 0.7, MaxTokens: 512},
	}
}

func content(body string) models.ExtractedContent {
	return models.ExtractedContent{SourceURL: "https://example.com/a", Title: "A", Body: &body, Kind: models.KindArticle}
}

func TestInsufficientContent(t *testing.T) {
	eng := enginetest.NewReady("unused")
	view := &recordingView{}
	c := New(eng, view, testOptions())

	require.NoError(t, c.Begin())
	assert.Equal(t, ExtractingContent, c.State())

	err := c.HandleContent(context.Background(), content(strings.Repeat("x", 30)))
	assert.ErrorIs(t, err, ErrInsufficientContent)
	assert.Equal(t, Idle, c.State(), "trigger must be re-enabled")
	assert.Equal(t, []string{InsufficientMessage}, view.errors)
	assert.Contains(t, strings.ToLower(view.errors[0]), "insufficient content")
	assert.Equal(t, []bool{true, false}, view.busy)
	assert.Empty(t, eng.Calls())

	err = c.HandleContent(context.Background(), models.ExtractedContent{Kind: models.KindNone})
	assert.ErrorIs(t, err, ErrInsufficientContent)
}

func TestPromptUsesFirstMaxCharsOfBody(t *testing.T) {
	eng := enginetest.NewReady("ok")
	c := New(eng, nil, testOptions())

	body := strings.Repeat("a", 4000) + strings.Repeat("b", 1000)
	require.NoError(t, c.HandleContent(context.Background(), content(body)))

	calls := eng.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, models.RoleUser, calls[0][0].Role)
	assert.Equal(t, "Summarize:\n"+strings.Repeat("a", 4000), calls[0][0].Content)

	opts := eng.Options()
	assert.Equal(t, 0.7, opts[0].Temperature)
	assert.Equal(t, 512, opts[0].MaxTokens)
}

func TestStreamRepublishesAccumulator(t *testing.T) {
	eng := enginetest.NewReady("Hel", "lo ", " world")
	view := &recordingView{}
	rec := &fakeRecorder{}
	snk := &fakeSink{}
	c := New(eng, view, testOptions(), WithRecorder(rec), WithSink(snk))

	require.NoError(t, c.Begin())
	require.NoError(t, c.HandleContent(context.Background(), content(strings.Repeat("word ", 20))))

	assert.Equal(t, []string{"Hel", "Hello ", "Hello  world"}, view.updates)
	for i := 1; i < len(view.updates); i++ {
		assert.True(t, strings.HasPrefix(view.updates[i], view.updates[i-1]))
	}
	assert.Equal(t, []string{"Hello  world"}, view.done)
	assert.Equal(t, Idle, c.State())

	h := c.History()
	require.Len(t, h, 2)
	assert.Equal(t, models.RoleAssistant, h[1].Role)
	assert.Equal(t, "Hello  world", h[1].Content)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "https://example.com/a", rec.entries[0].URL)
	require.Len(t, snk.records, 1)
	assert.Equal(t, "Hello  world", snk.records[0].Summary)
	assert.Equal(t, "A", snk.records[0].Title)
}

func TestStreamFailureRevertsUserTurn(t *testing.T) {
	for _, revert := range []bool{true, false} {
		eng := enginetest.NewReady("partial ", "never")
		eng.FailAfter = 1
		eng.StreamErr = errors.New("gpu lost")
		view := &recordingView{}
		opts := testOptions()
		opts.Prompt.RevertOnError = revert
		snk := &fakeSink{}
		c := New(eng, view, opts, WithSink(snk))

		err := c.HandleContent(context.Background(), content(strings.Repeat("word ", 20)))
		assert.ErrorIs(t, err, ErrGeneration)
		assert.Equal(t, Idle, c.State())
		assert.Equal(t, []string{"partial "}, view.updates, "partial answer stays visible")
		assert.Equal(t, []string{ErrorMessage}, view.errors)
		assert.Empty(t, snk.records)
		if revert {
			assert.Empty(t, c.History())
		} else {
			assert.Len(t, c.History(), 1)
		}
	}
}

func TestStartFailure(t *testing.T) {
	eng := enginetest.New("x")
	view := &recordingView{}
	c := New(eng, view, testOptions())

	err := c.HandleContent(context.Background(), content(strings.Repeat("word ", 20)))
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorContains(t, err, engine.ErrNotInitialized.Error())
	assert.Equal(t, []string{ErrorMessage}, view.errors)
	assert.Equal(t, Idle, c.State())
}

func TestReentrantTriggersRejected(t *testing.T) {
	eng := enginetest.NewReady("one", "two")
	eng.Gate = make(chan struct{})
	view := &recordingView{}
	c := New(eng, view, testOptions())

	require.NoError(t, c.Begin())
	assert.ErrorIs(t, c.Begin(), ErrBusy)

	errc := make(chan error, 1)
	go func() { errc <- c.HandleContent(context.Background(), content(strings.Repeat("word ", 20))) }()

	require.Eventually(t, func() bool { return c.State() == Streaming }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Begin(), ErrBusy)
	assert.ErrorIs(t, c.Ask(context.Background(), "why?"), ErrBusy)
	_, err := c.SummarizeText(context.Background(), strings.Repeat("word ", 20))
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.HandleContent(context.Background(), content(strings.Repeat("word ", 20))), ErrBusy)

	close(eng.Gate)
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"one", "onetwo"}, view.updates)
	assert.Len(t, eng.Calls(), 1)
}

func TestAskKeepsOnePriorTurn(t *testing.T) {
	eng := enginetest.NewReady("answer")
	c := New(eng, nil, testOptions())

	require.NoError(t, c.HandleContent(context.Background(), content(strings.Repeat("word ", 20))))
	require.NoError(t, c.Ask(context.Background(), "first?"))
	require.NoError(t, c.Ask(context.Background(), "second?"))

	calls := eng.Calls()
	require.Len(t, calls, 3)
	last := calls[2]
	require.Len(t, last, 3)
	assert.Equal(t, "first?", last[0].Content)
	assert.Equal(t, models.RoleAssistant, last[1].Role)
	assert.Equal(t, "second?", last[2].Content)
	assert.Len(t, c.History(), 4)

	assert.ErrorIs(t, c.Ask(context.Background(), "  "), ErrEmptyQuestion)
}

func TestSummarizeResetsHistory(t *testing.T) {
	eng := enginetest.NewReady("answer")
	c := New(eng, nil, testOptions())

	require.NoError(t, c.Ask(context.Background(), "hello"))
	first := c.SessionID()
	require.NoError(t, c.HandleContent(context.Background(), content(strings.Repeat("word ", 20))))
	assert.NotEqual(t, first, c.SessionID())
	h := c.History()
	require.Len(t, h, 2)
	assert.True(t, strings.HasPrefix(h[0].Content, "Summarize:"))
}

func TestSummarizeText(t *testing.T) {
	eng := enginetest.NewReady("short ", "summary")
	view := &recordingView{}
	c := New(eng, view, testOptions())

	got, err := c.SummarizeText(context.Background(), strings.Repeat("word ", 20))
	require.NoError(t, err)
	assert.Equal(t, "short summary", got)
	assert.Empty(t, view.updates)
	assert.Empty(t, c.History())
	assert.Equal(t, Idle, c.State())

	_, err = c.SummarizeText(context.Background(), "tiny")
	assert.ErrorIs(t, err, ErrInsufficientContent)
}

func TestSummarizeFetchesAndExtracts(t *testing.T) {
	para := "This paragraph is long enough to be collected as article content."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>T</title></head><body><article><p>" +
			para + "</p><p>" + para + " Again.</p></article></body></html>"))
	}))
	defer srv.Close()

	eng := enginetest.NewReady("done")
	rec := &fakeRecorder{}
	x := extract.New(extract.Options{MaxLength: 5000, MinStructuredChars: 20, MinBlockChars: 20, Normalize: true})
	c := New(eng, nil, testOptions(), WithSource(fetch.NewHTTPSource(time.Second), x), WithRecorder(rec))

	require.NoError(t, c.Summarize(context.Background(), srv.URL))
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "T", rec.entries[0].Title)
	assert.Contains(t, rec.entries[0].Body, para)
	assert.Contains(t, eng.Calls()[0][0].Content, para)
}

func TestSummarizeFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	view := &recordingView{}
	x := extract.New(extract.Options{MaxLength: 5000})
	c := New(enginetest.NewReady("x"), view, testOptions(), WithSource(fetch.NewHTTPSource(time.Second), x))

	assert.Error(t, c.Summarize(context.Background(), srv.URL))
	assert.Equal(t, []string{FetchErrorMessage}, view.errors)
	assert.Equal(t, Idle, c.State())
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "S: abc", BuildPrompt("S: %s", "abcdef", 3))
	assert.Equal(t, "Plain\n\nabc", BuildPrompt("Plain", "abc", 0))
	assert.True(t, strings.HasSuffix(BuildPrompt("", "body", 10), "body"))
	assert.Equal(t, "100% of: x", BuildPrompt("100% of: %s", "x", 10))
}
