package render

import (
	"testing"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

func testDoc(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(`<html><body><div id="root"></div><div id="other"></div></body></html>`)
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return doc
}

func testWrapper(t *testing.T, doc *dom.Document) *dom.Element {
	t.Helper()
	el, err := dom.ParseFragment(doc, `<div id="__qiankun_orders__"><p>content</p></div>`)
	if err != nil {
		t.Fatalf("Failed to parse wrapper: %v", err)
	}
	return el
}

func newTestDispatcher(doc *dom.Document, container dom.ContainerRef, legacy types.LegacyRender) *Dispatcher {
	app := &types.AppDescriptor{Name: "orders", Container: container, Render: legacy}
	return NewDispatcher(doc, app, logging.NewNop())
}

func TestRenderAppendsElement(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#root"), nil)

	err := d.Render(types.RenderArgs{Element: wrapper, Loading: true}, types.PhaseLoading)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	root := doc.ElementByID("root")
	if root == nil {
		t.Fatal("Root container vanished")
	}
	children := root.Children()
	if len(children) != 1 {
		t.Fatalf("Container should hold exactly the wrapper, got %d children", len(children))
	}
	if !children[0].Same(wrapper) {
		t.Error("Container child should be the wrapper element")
	}
}

func TestRenderReplacesPreviousContent(t *testing.T) {
	doc := testDoc(t)
	root := doc.ElementByID("root")
	stale, err := dom.ParseFragment(doc, `<p>stale</p>`)
	if err != nil {
		t.Fatalf("Failed to parse fragment: %v", err)
	}
	root.AppendChild(stale)

	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#root"), nil)

	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	children := root.Children()
	if len(children) != 1 || !children[0].Same(wrapper) {
		t.Errorf("Previous content should be replaced by the wrapper, got %d children", len(children))
	}
}

func TestRenderIdempotent(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#root"), nil)

	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting); err != nil {
		t.Fatalf("First render failed: %v", err)
	}

	// Mutate the mounted subtree, then render again. The subtree must
	// survive because the wrapper is already in place.
	marker, err := dom.ParseFragment(doc, `<span id="marker"></span>`)
	if err != nil {
		t.Fatalf("Failed to parse marker: %v", err)
	}
	wrapper.AppendChild(marker)

	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounted); err != nil {
		t.Fatalf("Second render failed: %v", err)
	}

	if doc.ElementByID("marker") == nil {
		t.Error("Repeated render must not rebuild an already-placed wrapper")
	}
}

func TestRenderMissingContainerIsFatal(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#absent"), nil)

	for _, phase := range []types.Phase{types.PhaseLoading, types.PhaseMounting, types.PhaseMounted} {
		err := d.Render(types.RenderArgs{Element: wrapper}, phase)
		if err == nil {
			t.Errorf("Phase %s should fail on a missing container", phase)
			continue
		}
		if !types.IsConfigError(err) {
			t.Errorf("Phase %s should produce a config error, got: %v", phase, err)
		}
	}
}

func TestRenderMissingContainerToleratedOnUnmount(t *testing.T) {
	doc := testDoc(t)
	d := newTestDispatcher(doc, dom.Selector("#absent"), nil)

	if err := d.Render(types.RenderArgs{Element: nil}, types.PhaseUnmounted); err != nil {
		t.Errorf("Unmounted phase should tolerate a missing container, got: %v", err)
	}
}

func TestRenderUnmountClearsContainer(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#root"), nil)

	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting); err != nil {
		t.Fatalf("Mount render failed: %v", err)
	}
	if err := d.Render(types.RenderArgs{Element: nil}, types.PhaseUnmounted); err != nil {
		t.Fatalf("Unmount render failed: %v", err)
	}

	root := doc.ElementByID("root")
	if n := len(root.Children()); n != 0 {
		t.Errorf("Container should be empty after unmount, got %d children", n)
	}
}

func TestRenderRemountContainerOverride(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("#root"), nil)

	args := types.RenderArgs{Element: wrapper, RemountContainer: dom.Selector("#other")}
	if err := d.Render(args, types.PhaseMounting); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if n := len(doc.ElementByID("root").Children()); n != 0 {
		t.Errorf("Configured container should stay untouched, got %d children", n)
	}
	other := doc.ElementByID("other").Children()
	if len(other) != 1 || !other[0].Same(wrapper) {
		t.Error("Override container should receive the wrapper")
	}
}

func TestRenderElementRefContainer(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	target := doc.ElementByID("other")
	d := newTestDispatcher(doc, dom.NewElementRef(target), nil)

	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	children := target.Children()
	if len(children) != 1 || !children[0].Same(wrapper) {
		t.Error("Element-ref container should receive the wrapper")
	}
}

func TestRenderNoContainerConfigured(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, nil, nil)

	err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting)
	if err == nil {
		t.Fatal("Render without any container should fail")
	}
	if !types.IsConfigError(err) {
		t.Errorf("Expected config error, got: %v", err)
	}

	if err := d.Render(types.RenderArgs{}, types.PhaseUnmounted); err != nil {
		t.Errorf("Unmounted phase should tolerate a missing configuration, got: %v", err)
	}
}

func TestLegacyRenderDelegates(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)

	var calls []types.Phase
	legacy := func(args types.RenderArgs, phase types.Phase) error {
		calls = append(calls, phase)
		return nil
	}
	d := newTestDispatcher(doc, dom.Selector("#root"), legacy)

	if err := d.Render(types.RenderArgs{Element: wrapper, Loading: true}, types.PhaseLoading); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounted); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(calls) != 2 || calls[0] != types.PhaseLoading || calls[1] != types.PhaseMounted {
		t.Errorf("Legacy render should receive every dispatch, got %v", calls)
	}

	// The dispatcher must not touch the container when delegating.
	if n := len(doc.ElementByID("root").Children()); n != 0 {
		t.Errorf("Container should be untouched under legacy render, got %d children", n)
	}
}

func TestRenderInvalidSelector(t *testing.T) {
	doc := testDoc(t)
	wrapper := testWrapper(t, doc)
	d := newTestDispatcher(doc, dom.Selector("!!bogus"), nil)

	err := d.Render(types.RenderArgs{Element: wrapper}, types.PhaseMounting)
	if err == nil {
		t.Fatal("Invalid selector should fail the render")
	}
	if !types.IsConfigError(err) {
		t.Errorf("Expected config error, got: %v", err)
	}
}
