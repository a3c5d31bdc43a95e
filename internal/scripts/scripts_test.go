package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

const storyScript = `
exports.name = "story";
exports.matches = function (url) { return url.indexOf("news.example") >= 0; };
exports.extract = function (page) {
	console.log("extracting", page.url);
	return page.select(".story p");
};
`

func parse(t *testing.T, url, markup string) *extract.Document {
	t.Helper()
	doc, err := extract.Parse(&fetch.Page{URL: url, HTML: markup})
	require.NoError(t, err)
	return doc
}

func TestCompile(t *testing.T) {
	s, err := Compile("file", "file.js", storyScript)
	require.NoError(t, err)
	assert.Equal(t, "story", s.Name())

	_, err = Compile("broken", "broken.js", `exports.matches = function () { return true; };`)
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "extract", se.Function)

	_, err = Compile("syntax", "syntax.js", `exports.extract = function ( {`)
	assert.ErrorAs(t, err, &se)
}

func TestScriptExtract(t *testing.T) {
	s, err := Compile("story", "story.js", storyScript)
	require.NoError(t, err)

	doc := parse(t, "https://news.example/a", `<html><body><div class="story">
		<p>First paragraph.</p><p style="display:none">Hidden.</p><p>Second paragraph.</p>
	</div></body></html>`)

	ok, err := s.Matches(context.Background(), doc.URL)
	require.NoError(t, err)
	assert.True(t, ok)

	text, err := s.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", text)
}

func TestScriptXPathAndNull(t *testing.T) {
	s, err := Compile("x", "x.js", `
exports.matches = function () { return true; };
exports.extract = function (page) {
	var found = page.xpath("//h1");
	return found.length ? found[0] + " / " + page.title : null;
};`)
	require.NoError(t, err)

	text, err := s.Extract(context.Background(), parse(t, "https://e.com", `<html><head><title>T</title></head><body><h1>Heading</h1></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Heading / T", text)

	_, err = s.Extract(context.Background(), parse(t, "https://e.com", `<html><body></body></html>`))
	assert.ErrorIs(t, err, extract.ErrNoText)
}

func TestScriptTimeout(t *testing.T) {
	s, err := Compile("loop", "loop.js", `
exports.matches = function () { return true; };
exports.extract = function () { while (true) {} };`)
	require.NoError(t, err)
	s.SetTimeout(50 * time.Millisecond)

	_, err = s.Extract(context.Background(), parse(t, "https://e.com", "<html></html>"))
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.IsTimeout)

	// The VM is usable again afterwards.
	ok, err := s.Matches(context.Background(), "https://e.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScriptThrows(t *testing.T) {
	s, err := Compile("throws", "throws.js", `
exports.matches = function () { return true; };
exports.extract = function () { throw new Error("nope"); };`)
	require.NoError(t, err)

	_, err = s.Extract(context.Background(), parse(t, "https://e.com", "<html></html>"))
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "extract", se.Function)
}

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestRegistryAsStrategy(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "story.js", storyScript)
	writeScript(t, dir, "broken.js", `this is not javascript`)
	writeScript(t, dir, "notes.txt", `ignored`)

	r := NewRegistry(dir)
	require.NoError(t, r.Reload())
	assert.Equal(t, []string{"story"}, r.Names())

	doc := parse(t, "https://news.example/a", `<html><body><div class="story"><p>Only paragraph.</p></div></body></html>`)
	res, err := r.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Only paragraph.", res.Text)
	assert.Equal(t, models.KindArticle, res.Kind)

	_, err = r.Extract(context.Background(), parse(t, "https://other.example", "<html></html>"))
	assert.True(t, errors.Is(err, extract.ErrNotApplicable))
}

func TestRegistryMissingDir(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, r.Reload())
	assert.Empty(t, r.Names())
}

func TestRegistryInExtractor(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "story.js", storyScript)
	r := NewRegistry(dir)
	require.NoError(t, r.Reload())

	x := extract.New(extract.Options{Normalize: true}, r)
	got := x.ExtractHTML(context.Background(), "https://news.example/a",
		`<html><body><div class="story"><p>Script   chosen text.</p></div><article><p>Generic article paragraph text.</p></article></body></html>`)
	assert.Equal(t, "Script chosen text.", got.Text())
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)
	require.NoError(t, r.Reload())

	w := NewWatcher(r)
	w.debounceDelay = 20 * time.Millisecond
	reloaded := make(chan struct{}, 4)
	w.OnReload(func() { reloaded <- struct{}{} })
	require.NoError(t, w.Start())
	defer w.Stop()

	writeScript(t, dir, "story.js", storyScript)

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
	assert.Equal(t, []string{"story"}, r.Names())
}
