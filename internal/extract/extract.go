// Package extract turns page markup into the text worth summarizing.
package extract

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/models"
)

var (
	// ErrNotApplicable means a strategy does not handle this page.
	ErrNotApplicable = errors.New("strategy does not apply")
	ErrNoText        = errors.New("no text found")
)

// Result is what a specialised strategy found.
type Result struct {
	Text string
	Kind models.ContentKind
	// Raw text keeps its whitespace.
	Raw bool
}

// Strategy is a site-specific source tried before the generic cascade.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, doc *Document) (Result, error)
}

// DefaultSelectors is the generic container cascade, most specific first.
var DefaultSelectors = []string{
	"article",
	"main",
	"div.main-content",
	"div.article-content",
	".post-content",
	".entry-content",
	"#content",
	"body",
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Li: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

type Options struct {
	MaxLength          int
	MinStructuredChars int
	MinBlockChars      int
	Normalize          bool
	// Selectors are tried before DefaultSelectors.
	Selectors []string
}

func OptionsFromConfig(cfg config.ExtractConfig) Options {
	return Options{
		MaxLength:          cfg.MaxLength,
		MinStructuredChars: cfg.MinStructuredChars,
		MinBlockChars:      cfg.MinBlockChars,
		Normalize:          cfg.NormalizeWhitespace,
		Selectors:          cfg.Selectors,
	}
}

// Extractor runs the strategy list against one page at a time.
type Extractor struct {
	opts       Options
	selectors  []string
	strategies []Strategy
	log        zerolog.Logger
}

// New builds an Extractor. Specialised strategies run in the given order,
// before the built-in YouTube strategy.
func New(opts Options, specialised ...Strategy) *Extractor {
	if opts.MaxLength <= 0 {
		opts.MaxLength = 5000
	}
	if opts.MinStructuredChars <= 0 {
		opts.MinStructuredChars = 200
	}
	if opts.MinBlockChars <= 0 {
		opts.MinBlockChars = 20
	}
	strategies := make([]Strategy, 0, len(specialised)+1)
	for _, s := range specialised {
		if s != nil {
			strategies = append(strategies, s)
		}
	}
	strategies = append(strategies, YouTube{})
	return &Extractor{
		opts:       opts,
		selectors:  append(append([]string{}, opts.Selectors...), DefaultSelectors...),
		strategies: strategies,
		log:        log.With().Str("component", "extract").Logger(),
	}
}

// Extract produces exactly one result for page. A nil body is a valid
// result and means nothing usable was found.
func (x *Extractor) Extract(ctx context.Context, page *fetch.Page) models.ExtractedContent {
	res := models.ExtractedContent{Kind: models.KindNone}
	if page == nil {
		return res
	}
	res.SourceURL = page.URL

	doc, err := Parse(page)
	if err != nil {
		x.log.Warn().Err(err).Str("url", page.URL).Msg("Could not parse page")
		return res
	}
	res.Title = doc.Title()

	for _, s := range x.strategies {
		if ctx.Err() != nil {
			return res
		}
		r, err := s.Extract(ctx, doc)
		if err != nil {
			if !errors.Is(err, ErrNotApplicable) {
				x.log.Debug().Err(err).Str("strategy", s.Name()).Str("url", page.URL).Msg("Strategy found nothing")
			}
			continue
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		kind := r.Kind
		if kind == "" {
			kind = models.KindArticle
		}
		body := r.Text
		if !r.Raw {
			body = x.normalize(body)
		}
		body = Truncate(body, x.opts.MaxLength)
		res.Body, res.Kind = &body, kind
		x.log.Debug().Str("strategy", s.Name()).Int("chars", utf8.RuneCountInString(body)).Msg("Extracted content")
		return res
	}

	text := x.structuredText(doc)
	if utf8.RuneCountInString(text) < x.opts.MinStructuredChars {
		text = VisibleText(doc.Body())
	}
	text = x.normalize(text)
	if strings.TrimSpace(text) == "" {
		return res
	}
	text = Truncate(text, x.opts.MaxLength)
	res.Body, res.Kind = &text, models.KindArticle
	return res
}

// ExtractHTML is a convenience for callers holding raw markup.
func (x *Extractor) ExtractHTML(ctx context.Context, url, markup string) models.ExtractedContent {
	return x.Extract(ctx, &fetch.Page{URL: url, HTML: markup})
}

func (x *Extractor) normalize(s string) string {
	if !x.opts.Normalize {
		return strings.TrimSpace(s)
	}
	return NormalizeWhitespace(s)
}

// structuredText collects blocks from the first visible container that
// yields any.
func (x *Extractor) structuredText(doc *Document) string {
	for _, sel := range x.selectors {
		nodes, err := doc.Select(sel)
		if err != nil {
			x.log.Debug().Err(err).Str("selector", sel).Msg("Bad container selector")
			continue
		}
		for _, container := range nodes {
			if container.Type != html.ElementNode || !IsVisible(container) {
				continue
			}
			if blocks := x.collectBlocks(container); len(blocks) > 0 {
				return strings.Join(blocks, "\n\n")
			}
		}
	}
	return ""
}

func (x *Extractor) collectBlocks(container *html.Node) []string {
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || hiddenSelf(c) {
				continue
			}
			if blockTags[c.DataAtom] && !underChrome(c, container) {
				t := strings.TrimSpace(VisibleText(c))
				if utf8.RuneCountInString(t) > x.opts.MinBlockChars {
					blocks = append(blocks, t)
				}
			}
			walk(c)
		}
	}
	walk(container)
	return dedupe(blocks)
}
