package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xpath"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/vrsandeep/pagesum-go/internal/fetch"
)

// XPathPrefix marks a selector as an XPath expression instead of CSS.
const XPathPrefix = "xpath:"

// metaPolicy strips markup that sites leave inside meta content.
var metaPolicy = bluemonday.StrictPolicy()

// metaText turns a meta attribute value into plain text.
func metaText(v string) string {
	return NormalizeWhitespace(html.UnescapeString(metaPolicy.Sanitize(v)))
}

// Document is a parsed page shared by every extraction strategy.
type Document struct {
	URL      string
	Rendered bool

	raw string
	doc *goquery.Document

	ogOnce sync.Once
	og     *opengraph.OpenGraph
}

// Parse builds a Document from fetched markup.
func Parse(page *fetch.Page) (*Document, error) {
	if page == nil {
		return nil, fmt.Errorf("parse: nil page")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML of '%s': %w", page.URL, err)
	}
	return &Document{URL: page.URL, Rendered: page.Rendered, raw: page.HTML, doc: doc}, nil
}

// HTML returns the markup the document was parsed from.
func (d *Document) HTML() string { return d.raw }

// Root is the document node.
func (d *Document) Root() *html.Node { return d.doc.Get(0) }

// Body returns the <body> element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if b := d.doc.Find("body").First(); b.Length() > 0 {
		return b.Get(0)
	}
	return d.Root()
}

func (d *Document) openGraph() *opengraph.OpenGraph {
	d.ogOnce.Do(func() {
		og := opengraph.NewOpenGraph()
		if err := og.ProcessHTML(strings.NewReader(d.raw)); err == nil {
			d.og = og
		}
	})
	return d.og
}

// Title returns <title>, falling back to og:title.
func (d *Document) Title() string {
	if t := NormalizeWhitespace(d.doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og := d.openGraph(); og != nil {
		return metaText(og.Title)
	}
	return ""
}

// Description returns og:description, then <meta name="description">.
func (d *Document) Description() string {
	if og := d.openGraph(); og != nil {
		if v := metaText(og.Description); v != "" {
			return v
		}
	}
	v, _ := d.doc.Find(`meta[name="description"]`).First().Attr("content")
	return metaText(v)
}

// Select returns the element nodes matched by a CSS selector, or by an
// XPath expression when the selector starts with XPathPrefix.
func (d *Document) Select(selector string) ([]*html.Node, error) {
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		return d.XPath(expr)
	}
	// goquery treats an invalid selector as matching nothing.
	return d.doc.Find(selector).Nodes, nil
}

// SelectText returns the visible text of every visible match, skipping
// empty results.
func (d *Document) SelectText(selector string) ([]string, error) {
	nodes, err := d.Select(selector)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range nodes {
		if t := nodeText(n); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		if n.Parent != nil && !IsVisible(n.Parent) {
			return ""
		}
		return strings.TrimSpace(n.Data)
	}
	return strings.TrimSpace(VisibleText(n))
}

// XPath evaluates expr against the whole document. Attribute matches are
// returned as detached text nodes holding the attribute value.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath expression '%s': %w", expr, err)
	}
	iter := compiled.Select(newNavigator(d.Root()))
	var nodes []*html.Node
	for iter.MoveNext() {
		nav, ok := iter.Current().(*nodeNavigator)
		if !ok {
			continue
		}
		if nav.onAttr() {
			nodes = append(nodes, &html.Node{Type: html.TextNode, Data: nav.Value(), Parent: nav.node})
			continue
		}
		nodes = append(nodes, nav.node)
	}
	return nodes, nil
}
