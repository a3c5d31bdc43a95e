package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HiddenAttr is set by the browser renderer on elements it did not paint.
const HiddenAttr = "data-pagesum-hidden"

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)(^|[;\s])opacity\s*:\s*0*(\.0+)?\s*(;|!|$)`),
	regexp.MustCompile(`(?i)(^|[;\s])(width|height)\s*:\s*0(px|em|rem|%)?\s*(;|!|$)`),
}

// Never contribute text.
var nonTextTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

// Page chrome; blocks under these are never article text.
var chromeTags = map[atom.Atom]bool{
	atom.Header: true,
	atom.Footer: true,
	atom.Nav:    true,
	atom.Aside:  true,
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// hiddenSelf checks only the element's own attributes.
func hiddenSelf(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if nonTextTags[n.DataAtom] {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if _, ok := attr(n, HiddenAttr); ok {
		return true
	}
	if v, ok := attr(n, "aria-hidden"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	if style, ok := attr(n, "style"); ok {
		for _, pat := range hiddenStylePatterns {
			if pat.MatchString(style) {
				return true
			}
		}
	}
	return false
}

// IsVisible reports whether n and all of its ancestors would be rendered.
func IsVisible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if hiddenSelf(cur) {
			return false
		}
	}
	return true
}

func isChrome(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if chromeTags[n.DataAtom] {
		return true
	}
	if role, ok := attr(n, "role"); ok && strings.EqualFold(role, "navigation") {
		return true
	}
	return hasClass(n, "sidebar")
}

// underChrome reports whether n sits inside page chrome below stop.
func underChrome(n, stop *html.Node) bool {
	for cur := n; cur != nil && cur != stop; cur = cur.Parent {
		if isChrome(cur) {
			return true
		}
	}
	return false
}
