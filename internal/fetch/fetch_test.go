package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			assert.Contains(t, r.Header.Get("User-Agent"), "pagesum")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body><p>hi</p></body></html>"))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(5 * time.Second)

	page, err := src.Fetch(context.Background(), server.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/article", page.URL)
	assert.Contains(t, page.HTML, "<p>hi</p>")
	assert.False(t, page.Rendered)

	_, err = src.Fetch(context.Background(), server.URL+"/image")
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = src.Fetch(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}

type stubSource struct {
	page *Page
	err  error
}

func (s stubSource) Fetch(context.Context, string) (*Page, error) { return s.page, s.err }

func TestFallback(t *testing.T) {
	boom := errors.New("boom")
	f := Fallback{stubSource{err: boom}, stubSource{page: &Page{URL: "u", Rendered: true}}}
	page, err := f.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, page.Rendered)

	_, err = Fallback{stubSource{err: boom}}.Fetch(context.Background(), "u")
	assert.ErrorIs(t, err, boom)

	_, err = Fallback{}.Fetch(context.Background(), "u")
	assert.Error(t, err)
}
