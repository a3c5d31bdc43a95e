package background

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/relay"
)

// PageWorker is the page context: it loads pages and extracts their text
// when the background asks for it.
type PageWorker struct {
	ep        *relay.Endpoint
	source    fetch.Source
	extractor *extract.Extractor
	log       zerolog.Logger
	ctx       context.Context
	remove    func()
}

func NewPageWorker(ep *relay.Endpoint, src fetch.Source, x *extract.Extractor) *PageWorker {
	return &PageWorker{
		ep:        ep,
		source:    src,
		extractor: x,
		log:       log.With().Str("component", "page").Logger(),
		ctx:       context.Background(),
	}
}

func (w *PageWorker) Start(ctx context.Context) {
	w.ctx = ctx
	w.remove = w.ep.OnMessage(w.handle)
}

func (w *PageWorker) Stop() {
	if w.remove != nil {
		w.remove()
		w.remove = nil
	}
}

func (w *PageWorker) handle(msg relay.Message, from string, r relay.Responder) bool {
	m, ok := msg.(relay.SummarizePage)
	if !ok || from != relay.BackgroundContext {
		return false
	}
	r.Reply(relay.Reply{Status: relay.StatusSuccess})
	go w.run(m.URL)
	return false
}

// run always answers with exactly one CONTENT_EXTRACTED, even when the page
// could not be loaded.
func (w *PageWorker) run(url string) {
	content := w.Extract(w.ctx, url)
	if err := w.ep.Send(relay.NewContentExtracted(content)); err != nil {
		w.log.Warn().Err(err).Str("url", url).Msg("Could not deliver extracted content")
	}
}

// Extract loads url and extracts it. Load failures yield a result with a
// nil body.
func (w *PageWorker) Extract(ctx context.Context, url string) models.ExtractedContent {
	page, err := w.source.Fetch(ctx, url)
	if err != nil {
		w.log.Warn().Err(err).Str("url", url).Msg("Failed to load page")
		return models.ExtractedContent{SourceURL: url, Kind: models.KindNone}
	}
	return w.extractor.Extract(ctx, page)
}
