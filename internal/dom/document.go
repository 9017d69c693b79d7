package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed host page. All tree mutations go through it.
type Document struct {
	mu        sync.RWMutex
	root      *html.Node
	isolation bool
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root, isolation: true}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(content string) (*Document, error) {
	return Parse(strings.NewReader(content))
}

// NewDocument returns an empty host page with a head and body.
func NewDocument() *Document {
	doc, err := ParseString("<!DOCTYPE html><html><head></head><body></body></html>")
	if err != nil {
		// The literal above always parses.
		panic(err)
	}
	return doc
}

// SetIsolationSupported toggles the isolated sub-tree primitive. Hosts that
// cannot re-host children under an isolated root disable this; wrapper
// isolation then degrades to a plain wrapper.
func (d *Document) SetIsolationSupported(ok bool) {
	d.mu.Lock()
	d.isolation = ok
	d.mu.Unlock()
}

// IsolationSupported reports whether isolated sub-roots are available.
func (d *Document) IsolationSupported() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isolation
}

// Body returns the document body element.
func (d *Document) Body() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	}); n != nil {
		return &Element{doc: d, node: n}
	}
	return nil
}

// Find returns the first element matching a CSS selector, or nil.
func (d *Document) Find(selector string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel := goquery.NewDocumentFromNode(d.root).Find(selector)
	if sel.Length() == 0 {
		return nil
	}
	return &Element{doc: d, node: sel.Get(0)}
}

// FindAll returns every element matching a CSS selector.
func (d *Document) FindAll(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Element
	goquery.NewDocumentFromNode(d.root).Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{doc: d, node: s.Get(0)})
	})
	return out
}

// FindXPath returns the first element matching an XPath expression.
// An invalid expression is an error; no match is (nil, nil).
func (d *Document) FindXPath(expr string) (*Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if n == nil {
		return nil, nil
	}
	return &Element{doc: d, node: n}, nil
}

// ElementByID returns the element with the given id attribute, or nil.
func (d *Document) ElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrVal(n, "id") == id
	}); n != nil {
		return &Element{doc: d, node: n}
	}
	return nil
}

// CreateElement returns a detached element owned by this document.
func (d *Document) CreateElement(tag string) *Element {
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return &Element{doc: d, node: node}
}

// Render serializes the current tree back to HTML.
func (d *Document) Render() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
