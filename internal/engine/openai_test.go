package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

// fakeLocalServer speaks just enough of the OpenAI and Ollama APIs.
type fakeLocalServer struct {
	mu        sync.Mutex
	keepAlive []any
	requests  []map[string]any
	release   chan struct{}
	pullGate  chan struct{}

	// failGenerate makes /api/generate answer with a server error.
	failGenerate bool
}

func (f *fakeLocalServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/models/")
		if id != "tiny" {
			http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"object":"model","created":0,"owned_by":"local"}`, id)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.requests = append(f.requests, body)
		gate := f.release
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, frag := range []string{"Hello", ", ", "world"} {
			if i == 1 && gate != nil {
				<-gate
			}
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":0,\"model\":\"tiny\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", frag)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		gate := f.pullGate
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"status":"pulling manifest"}`+"\n")
		if gate != nil {
			w.(http.Flusher).Flush()
			<-gate
		}
		io.WriteString(w, `{"status":"downloading","digest":"sha256:1","total":100,"completed":50}`+"\n")
		io.WriteString(w, `{"status":"downloading","digest":"sha256:1","total":100,"completed":100}`+"\n")
		io.WriteString(w, `{"status":"verifying sha256 digest"}`+"\n")
		io.WriteString(w, `{"status":"success"}`+"\n")
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.keepAlive = append(f.keepAlive, body["keep_alive"])
		fail := f.failGenerate
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":"runner crashed"}`)
			return
		}
		io.WriteString(w, `{"done":true}`)
	})
	return mux
}

func newTestEngine(t *testing.T, withPull bool) (*OpenAI, *fakeLocalServer) {
	t.Helper()
	fake := &fakeLocalServer{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Defaults().Model
	cfg.BaseURL = server.URL + "/v1/"
	cfg.PullURL = ""
	if withPull {
		cfg.PullURL = server.URL
	}
	return NewOpenAI(cfg), fake
}

func TestOpenAIStreamComplete(t *testing.T) {
	e, fake := newTestEngine(t, false)

	_, err := e.StreamComplete(context.Background(), nil, GenerateOptions{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	var progress []models.LoadProgress
	require.NoError(t, e.Initialize(context.Background(), "tiny", func(p models.LoadProgress) { progress = append(progress, p) }))
	assert.True(t, e.Ready())
	assert.Equal(t, "tiny", e.Model())
	require.NotEmpty(t, progress)
	assert.True(t, progress[len(progress)-1].Done())

	history := []models.ChatMessage{{Role: models.RoleUser, Content: "Say hello"}}
	stream, err := e.StreamComplete(context.Background(), history, GenerateOptions{Temperature: 0.7, MaxTokens: 512})
	require.NoError(t, err)
	text, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	fake.mu.Lock()
	req := fake.requests[0]
	fake.mu.Unlock()
	assert.Equal(t, "tiny", req["model"])
	assert.InDelta(t, 0.7, req["temperature"], 1e-9)
	assert.EqualValues(t, 512, req["max_tokens"])
	assert.Equal(t, true, req["stream"])
}

func TestOpenAIRejectsConcurrentStream(t *testing.T) {
	e, fake := newTestEngine(t, false)
	require.NoError(t, e.Initialize(context.Background(), "tiny", nil))

	fake.mu.Lock()
	fake.release = make(chan struct{})
	fake.mu.Unlock()
	first, err := e.StreamComplete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "one"}}, GenerateOptions{})
	require.NoError(t, err)
	require.True(t, first.Next())

	_, err = e.StreamComplete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "two"}}, GenerateOptions{})
	assert.ErrorIs(t, err, ErrBusy)

	close(fake.release)
	_, err = Collect(first)
	require.NoError(t, err)

	second, err := e.StreamComplete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "three"}}, GenerateOptions{})
	require.NoError(t, err)
	second.Close()
}

func TestOpenAIInitializeUnknownModel(t *testing.T) {
	e, _ := newTestEngine(t, false)
	err := e.Initialize(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.False(t, e.Ready())
}

func TestOpenAIPullAndUnload(t *testing.T) {
	e, fake := newTestEngine(t, true)

	var fractions []float64
	require.NoError(t, e.Initialize(context.Background(), "tiny", func(p models.LoadProgress) {
		fractions = append(fractions, p.Fraction)
	}))
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	halfway := false
	for _, f := range fractions {
		if f > 0.449 && f < 0.451 {
			halfway = true
		}
	}
	assert.True(t, halfway, "download progress should be reported")

	// Same model again is a no-op.
	require.NoError(t, e.Initialize(context.Background(), "tiny", nil))

	require.NoError(t, e.Terminate(context.Background()))
	assert.False(t, e.Ready())
	require.NoError(t, e.Terminate(context.Background()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.keepAlive, 2)
	assert.Equal(t, 30*time.Minute, keepAliveDuration(t, fake.keepAlive[0]))
	assert.Equal(t, time.Duration(0), keepAliveDuration(t, fake.keepAlive[1]))
}

// keepAliveDuration reads keep_alive as either a duration string or seconds.
func keepAliveDuration(t *testing.T, v any) time.Duration {
	t.Helper()
	switch v := v.(type) {
	case string:
		d, err := time.ParseDuration(v)
		require.NoError(t, err)
		return d
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		t.Fatalf("unexpected keep_alive %#v", v)
		return 0
	}
}

func TestOpenAIStateReadableDuringPull(t *testing.T) {
	e, fake := newTestEngine(t, true)
	gate := make(chan struct{})
	fake.mu.Lock()
	fake.pullGate = gate
	fake.mu.Unlock()

	started := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		done <- e.Initialize(context.Background(), "tiny", func(p models.LoadProgress) {
			if p.Text == "pulling manifest" {
				once.Do(func() { close(started) })
			}
		})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("pull never started")
	}

	readable := make(chan struct{})
	go func() {
		assert.False(t, e.Ready())
		assert.True(t, e.Loading())
		assert.Empty(t, e.Model())
		assert.NoError(t, e.Terminate(context.Background()))
		close(readable)
	}()
	select {
	case <-readable:
	case <-time.After(2 * time.Second):
		t.Fatal("engine state blocked while the model was being pulled")
	}

	close(gate)
	require.NoError(t, <-done)
	assert.True(t, e.Ready())
	assert.False(t, e.Loading())
	assert.Equal(t, "tiny", e.Model())
}

func TestOpenAIUnloadErrorIsReported(t *testing.T) {
	e, fake := newTestEngine(t, true)
	require.NoError(t, e.Initialize(context.Background(), "tiny", nil))

	fake.mu.Lock()
	fake.failGenerate = true
	fake.mu.Unlock()

	err := e.Terminate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner crashed")
	assert.False(t, e.Ready())
}
