package dom

import (
	"strings"
	"testing"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>host</title></head>
<body>
<div id="root" class="zone"></div>
<div id="other" class="zone"></div>
</body>
</html>`

func parseTestPage(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(testPage)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func TestFindSelectors(t *testing.T) {
	doc := parseTestPage(t)

	if el := doc.Find("#root"); el == nil || el.ID() != "root" {
		t.Fatalf("Find(#root) = %v", el)
	}
	if el := doc.Find(".missing"); el != nil {
		t.Errorf("Find on no match should be nil, got %v", el)
	}
	if got := len(doc.FindAll(".zone")); got != 2 {
		t.Errorf("FindAll(.zone) returned %d elements, want 2", got)
	}
	if el := doc.ElementByID("other"); el == nil || el.ID() != "other" {
		t.Errorf("ElementByID(other) = %v", el)
	}
}

func TestFindXPath(t *testing.T) {
	doc := parseTestPage(t)

	el, err := doc.FindXPath(`//div[@id="root"]`)
	if err != nil {
		t.Fatalf("FindXPath: %v", err)
	}
	if el == nil || el.ID() != "root" {
		t.Fatalf("FindXPath matched %v", el)
	}

	el, err = doc.FindXPath(`//section`)
	if err != nil || el != nil {
		t.Errorf("no match should be (nil, nil), got (%v, %v)", el, err)
	}

	if _, err := doc.FindXPath(`//div[`); err == nil {
		t.Error("invalid expression should be an error")
	}
}

func TestTreeMutation(t *testing.T) {
	doc := parseTestPage(t)
	root := doc.Find("#root")

	child := doc.CreateElement("section")
	child.SetAttr("id", "widget")
	child.SetAttr("id", "widget2")
	root.AppendChild(child)

	if !child.Attached() {
		t.Fatal("appended child should be attached")
	}
	if !root.Contains(child) {
		t.Error("root should contain the child")
	}
	if v, _ := child.Attr("id"); v != "widget2" {
		t.Errorf("SetAttr should replace, got id=%q", v)
	}

	page, err := doc.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(page, `<section id="widget2">`) {
		t.Errorf("rendered page missing the new element:\n%s", page)
	}

	child.Detach()
	if child.Attached() {
		t.Error("detached child should not be attached")
	}
	if root.Contains(child) {
		t.Error("root should no longer contain the child")
	}

	// Detached elements survive and can be re-hosted.
	doc.Find("#other").AppendChild(child)
	if !doc.Find("#other").Contains(child) {
		t.Error("child should be re-attachable under a new parent")
	}
}

func TestMoveChildrenTo(t *testing.T) {
	doc := parseTestPage(t)
	root := doc.Find("#root")
	other := doc.Find("#other")

	if err := root.SetInnerHTML("<p>a</p><p>b</p>"); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	root.MoveChildrenTo(other)

	if got := len(root.Children()); got != 0 {
		t.Errorf("source kept %d children", got)
	}
	kids := other.Children()
	if len(kids) != 2 || kids[0].Text() != "a" || kids[1].Text() != "b" {
		t.Errorf("children should move in order, got %d", len(kids))
	}
}

func TestInnerHTMLRoundTrip(t *testing.T) {
	doc := parseTestPage(t)
	root := doc.Find("#root")

	if err := root.SetInnerHTML(`<p class="x">hello <b>world</b></p>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	inner, err := root.InnerHTML()
	if err != nil {
		t.Fatalf("InnerHTML: %v", err)
	}
	if inner != `<p class="x">hello <b>world</b></p>` {
		t.Errorf("InnerHTML = %q", inner)
	}
	if root.Text() != "hello world" {
		t.Errorf("Text = %q", root.Text())
	}

	outer, err := root.OuterHTML()
	if err != nil {
		t.Fatalf("OuterHTML: %v", err)
	}
	if !strings.HasPrefix(outer, `<div id="root"`) {
		t.Errorf("OuterHTML = %q", outer)
	}
}

func TestSameAliases(t *testing.T) {
	doc := parseTestPage(t)

	a := doc.Find("#root")
	b := doc.ElementByID("root")
	if !a.Same(b) {
		t.Error("two lookups of one node should be the same element")
	}
	if a.Same(doc.Find("#other")) {
		t.Error("distinct nodes must not compare the same")
	}
	if a.Same(nil) {
		t.Error("Same(nil) must be false")
	}
}

func TestParseFragment(t *testing.T) {
	doc := parseTestPage(t)

	el, err := ParseFragment(doc, `  <div class="app"><p>hi</p></div>  `)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	if el.Tag() != "div" || el.Attached() {
		t.Errorf("fragment root should be a detached div, got %s attached=%v", el.Tag(), el.Attached())
	}

	if _, err := ParseFragment(doc, `<div></div><div></div>`); err == nil {
		t.Error("two roots should be rejected")
	}
	if _, err := ParseFragment(doc, `just text`); err == nil {
		t.Error("stray text should be rejected")
	}
	if _, err := ParseFragment(doc, `   `); err == nil {
		t.Error("an empty fragment should be rejected")
	}
}

func TestContainerRefs(t *testing.T) {
	doc := parseTestPage(t)

	el, err := Selector("#root").Resolve(doc)
	if err != nil || el == nil || el.ID() != "root" {
		t.Fatalf("Selector resolve = (%v, %v)", el, err)
	}

	el, err = Selector("#missing").Resolve(doc)
	if err != nil || el != nil {
		t.Errorf("no match should be (nil, nil), got (%v, %v)", el, err)
	}

	if _, err := Selector("#unclosed[").Resolve(doc); err == nil {
		t.Error("invalid selector should be an error")
	}

	el, err = XPath(`//div[@id="other"]`).Resolve(doc)
	if err != nil || el == nil || el.ID() != "other" {
		t.Fatalf("XPath resolve = (%v, %v)", el, err)
	}

	direct := doc.Find("#root")
	ref := NewElementRef(direct)
	el, err = ref.Resolve(doc)
	if err != nil || !el.Same(direct) {
		t.Errorf("ElementRef should resolve to the wrapped handle")
	}
	if ref.String() != "#root" {
		t.Errorf("ElementRef.String() = %q", ref.String())
	}

	// A handle keeps resolving after the element leaves the page.
	direct.Detach()
	el, err = ref.Resolve(doc)
	if err != nil || el == nil {
		t.Error("detached handles still resolve")
	}
}

func TestIsolationToggle(t *testing.T) {
	doc := NewDocument()
	if !doc.IsolationSupported() {
		t.Fatal("isolation should default to supported")
	}
	doc.SetIsolationSupported(false)
	if doc.IsolationSupported() {
		t.Error("toggle should stick")
	}
}
