package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a handle to a node within a Document. Handles are cheap and
// may alias: two handles are the same element when Same reports true.
// Elements must not be moved between documents.
type Element struct {
	doc  *Document
	node *html.Node
}

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Tag returns the element's tag name.
func (e *Element) Tag() string { return e.node.Data }

// ID returns the id attribute.
func (e *Element) ID() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attrVal(e.node, "id")
}

// Same reports whether both handles refer to one underlying node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.node == other.node
}

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, a := range e.node.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(key, val string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, a := range e.node.Attr {
		if a.Key == key {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: val})
}

// AppendChild attaches child as the last child, detaching it first if it
// currently sits elsewhere in the tree.
func (e *Element) AppendChild(child *Element) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	detach(child.node)
	e.node.AppendChild(child.node)
}

// RemoveChildren drops every child node synchronously.
func (e *Element) RemoveChildren() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for e.node.FirstChild != nil {
		e.node.RemoveChild(e.node.FirstChild)
	}
}

// Detach removes the element from its parent. Detached elements stay usable
// and can be re-attached later.
func (e *Element) Detach() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	detach(e.node)
}

// Attached reports whether the element currently has a parent.
func (e *Element) Attached() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.node.Parent != nil
}

// Contains reports whether other is a strict descendant of e.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for p := other.node.Parent; p != nil; p = p.Parent {
		if p == e.node {
			return true
		}
	}
	return false
}

// MoveChildrenTo re-hosts every child of e under target, preserving order.
func (e *Element) MoveChildrenTo(target *Element) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for e.node.FirstChild != nil {
		c := e.node.FirstChild
		e.node.RemoveChild(c)
		target.node.AppendChild(c)
	}
}

// Children returns the element children in order.
func (e *Element) Children() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Element{doc: e.doc, node: c})
		}
	}
	return out
}

// Find returns the first descendant matching a CSS selector, or nil.
func (e *Element) Find(selector string) *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	sel := goquery.NewDocumentFromNode(e.node).Find(selector)
	if sel.Length() == 0 {
		return nil
	}
	return &Element{doc: e.doc, node: sel.Get(0)}
}

// FindAll returns every descendant matching a CSS selector.
func (e *Element) FindAll(selector string) []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var out []*Element
	goquery.NewDocumentFromNode(e.node).Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{doc: e.doc, node: s.Get(0)})
	})
	return out
}

// FindXPath returns the first descendant matching an XPath expression.
func (e *Element) FindXPath(expr string) (*Element, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	n, err := htmlquery.Query(e.node, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if n == nil {
		return nil, nil
	}
	return &Element{doc: e.doc, node: n}, nil
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return sb.String()
}

// InnerHTML serializes the element's children.
func (e *Element) InnerHTML() (string, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render children: %w", err)
		}
	}
	return buf.String(), nil
}

// OuterHTML serializes the element itself.
func (e *Element) OuterHTML() (string, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, e.node); err != nil {
		return "", fmt.Errorf("render element: %w", err)
	}
	return buf.String(), nil
}

// SetInnerHTML replaces the element's children with parsed markup.
func (e *Element) SetInnerHTML(content string) error {
	nodes, err := parseFragmentNodes(e.node, content)
	if err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for e.node.FirstChild != nil {
		e.node.RemoveChild(e.node.FirstChild)
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// ParseFragment parses content that must resolve to exactly one root
// element, returning it detached but owned by doc.
func ParseFragment(doc *Document, content string) (*Element, error) {
	body := doc.Body()
	var ctxNode *html.Node
	if body != nil {
		ctxNode = body.node
	}
	nodes, err := parseFragmentNodes(ctxNode, content)
	if err != nil {
		return nil, err
	}
	var root *html.Node
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode && root == nil:
			root = n
		case n.Type == html.ElementNode:
			return nil, fmt.Errorf("fragment has more than one root element")
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
			// Inter-element whitespace is fine.
		default:
			return nil, fmt.Errorf("fragment has stray content outside its root element")
		}
	}
	if root == nil {
		return nil, fmt.Errorf("fragment has no root element")
	}
	return &Element{doc: doc, node: root}, nil
}

func parseFragmentNodes(ctxNode *html.Node, content string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if ctxNode != nil && ctxNode.Type == html.ElementNode {
		ctx.Data = ctxNode.Data
		ctx.DataAtom = ctxNode.DataAtom
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
