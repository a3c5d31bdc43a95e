package extract

import (
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// nodeNavigator lets antchfx/xpath walk an x/net/html tree.
// attr is 1-based while positioned on an attribute, 0 otherwise.
type nodeNavigator struct {
	root *html.Node
	node *html.Node
	attr int
}

func newNavigator(root *html.Node) *nodeNavigator {
	return &nodeNavigator{root: root, node: root}
}

func (n *nodeNavigator) onAttr() bool {
	return n.node.Type == html.ElementNode && n.attr > 0 && n.attr <= len(n.node.Attr)
}

func (n *nodeNavigator) NodeType() xpath.NodeType {
	if n.onAttr() {
		return xpath.AttributeNode
	}
	switch n.node.Type {
	case html.DocumentNode:
		return xpath.RootNode
	case html.TextNode:
		return xpath.TextNode
	case html.CommentNode:
		return xpath.CommentNode
	default:
		return xpath.ElementNode
	}
}

func (n *nodeNavigator) LocalName() string {
	if n.onAttr() {
		return n.node.Attr[n.attr-1].Key
	}
	if n.node.Type == html.ElementNode {
		return n.node.Data
	}
	return ""
}

func (n *nodeNavigator) Prefix() string { return "" }

func (n *nodeNavigator) Value() string {
	if n.onAttr() {
		return n.node.Attr[n.attr-1].Val
	}
	switch n.node.Type {
	case html.TextNode, html.CommentNode:
		return n.node.Data
	case html.ElementNode, html.DocumentNode:
		return rawText(n.node)
	}
	return ""
}

func (n *nodeNavigator) String() string { return n.Value() }

func (n *nodeNavigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *nodeNavigator) MoveToRoot() {
	n.node = n.root
	n.attr = 0
}

func (n *nodeNavigator) MoveToParent() bool {
	if n.attr > 0 {
		n.attr = 0
		return true
	}
	if n.node == n.root || n.node.Parent == nil {
		return false
	}
	n.node = n.node.Parent
	return true
}

func (n *nodeNavigator) MoveToNextAttribute() bool {
	if n.node.Type != html.ElementNode || n.attr >= len(n.node.Attr) {
		return false
	}
	n.attr++
	return true
}

func (n *nodeNavigator) MoveToChild() bool {
	if n.attr > 0 || n.node.FirstChild == nil {
		return false
	}
	n.node = n.node.FirstChild
	return true
}

func (n *nodeNavigator) MoveToFirst() bool {
	if n.attr > 0 || n.node.Parent == nil || n.node == n.root {
		return false
	}
	first := n.node.Parent.FirstChild
	if first == n.node {
		return false
	}
	n.node = first
	return true
}

func (n *nodeNavigator) MoveToNext() bool {
	if n.attr > 0 || n.node == n.root || n.node.NextSibling == nil {
		return false
	}
	n.node = n.node.NextSibling
	return true
}

func (n *nodeNavigator) MoveToPrevious() bool {
	if n.attr > 0 || n.node == n.root || n.node.PrevSibling == nil {
		return false
	}
	n.node = n.node.PrevSibling
	return true
}

func (n *nodeNavigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*nodeNavigator)
	if !ok || o.root != n.root {
		return false
	}
	n.node = o.node
	n.attr = o.attr
	return true
}
