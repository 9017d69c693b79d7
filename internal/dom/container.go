package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// ContainerRef addresses a mount target. Resolution happens at render time
// against the live document, so the same ref can resolve to different
// elements across calls. A nil element with a nil error means "not found";
// errors are reserved for invalid expressions.
type ContainerRef interface {
	Resolve(doc *Document) (*Element, error)
	String() string
}

// Selector addresses a container by CSS selector.
type Selector string

// Resolve returns the first match in the document.
func (s Selector) Resolve(doc *Document) (*Element, error) {
	if _, err := cascadia.Parse(string(s)); err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", string(s), err)
	}
	return doc.Find(string(s)), nil
}

func (s Selector) String() string { return string(s) }

// XPath addresses a container by XPath expression.
type XPath string

// Resolve returns the first match in the document.
func (x XPath) Resolve(doc *Document) (*Element, error) {
	return doc.FindXPath(string(x))
}

func (x XPath) String() string { return string(x) }

// ElementRef addresses a container by direct handle.
type ElementRef struct {
	el *Element
}

// NewElementRef wraps an element handle as a container ref.
func NewElementRef(el *Element) ElementRef {
	return ElementRef{el: el}
}

// Resolve returns the wrapped element. A handle resolves even after the
// element was detached from the page; detachment is the host's business.
func (r ElementRef) Resolve(*Document) (*Element, error) {
	return r.el, nil
}

func (r ElementRef) String() string {
	if r.el == nil {
		return "<nil element>"
	}
	if id := r.el.ID(); id != "" {
		return "#" + id
	}
	return "<" + r.el.Tag() + ">"
}
