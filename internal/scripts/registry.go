package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Registry holds the scripts loaded from one directory and acts as an
// extraction strategy.
type Registry struct {
	dir     string
	timeout time.Duration

	mu      sync.RWMutex
	scripts []*Script
	log     zerolog.Logger
}

func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:     dir,
		timeout: DefaultTimeout,
		log:     log.With().Str("component", "scripts").Logger(),
	}
}

// SetTimeout applies to scripts loaded from now on.
func (r *Registry) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

func (r *Registry) Timeout() time.Duration { return r.timeout }

// Reload replaces the loaded scripts with the *.js files in the
// directory. Files that fail to compile are logged and skipped. A missing
// directory yields an empty registry.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.swap(nil)
			return nil
		}
		return err
	}

	var loaded []*Script
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".js") {
			continue
		}
		s, err := Load(filepath.Join(r.dir, e.Name()))
		if err != nil {
			r.log.Warn().Err(err).Str("file", e.Name()).Msg("Skipping extraction script")
			continue
		}
		s.SetTimeout(r.timeout)
		loaded = append(loaded, s)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].path < loaded[j].path })
	r.swap(loaded)
	r.log.Info().Int("count", len(loaded)).Str("dir", r.dir).Msg("Loaded extraction scripts")
	return nil
}

func (r *Registry) swap(s []*Script) {
	r.mu.Lock()
	r.scripts = s
	r.mu.Unlock()
}

// Add registers an already compiled script.
func (r *Registry) Add(s *Script) {
	r.mu.Lock()
	r.scripts = append(r.scripts, s)
	r.mu.Unlock()
}

// Names lists the loaded scripts.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.scripts))
	for i, s := range r.scripts {
		names[i] = s.Name()
	}
	return names
}

func (r *Registry) Name() string { return "scripts" }

// Extract runs the first matching script that returns text. Script
// errors are logged and the next script is tried.
func (r *Registry) Extract(ctx context.Context, doc *extract.Document) (extract.Result, error) {
	r.mu.RLock()
	scripts := append([]*Script(nil), r.scripts...)
	r.mu.RUnlock()

	applied := false
	for _, s := range scripts {
		ok, err := s.Matches(ctx, doc.URL)
		if err != nil {
			r.log.Warn().Err(err).Msg("Script matches() failed")
			continue
		}
		if !ok {
			continue
		}
		applied = true
		text, err := s.Extract(ctx, doc)
		if err != nil {
			if !errors.Is(err, extract.ErrNoText) {
				r.log.Warn().Err(err).Str("url", doc.URL).Msg("Script extract() failed")
			}
			continue
		}
		return extract.Result{Text: text, Kind: models.KindArticle}, nil
	}
	if !applied {
		return extract.Result{}, extract.ErrNotApplicable
	}
	return extract.Result{}, extract.ErrNoText
}
