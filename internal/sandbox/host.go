package sandbox

import (
	"context"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// Host owns the page-level VM that loose sandboxes share. Its document
// bridge is scoped to the host page body.
type Host struct {
	core *vmCore
}

// NewHost creates the shared host VM. doc may be nil for headless use; the
// document bridge is then absent.
func NewHost(log *logging.Logger, doc *dom.Document) *Host {
	var getter func() *dom.Element
	if doc != nil {
		getter = func() *dom.Element { return doc.Body() }
	}
	return &Host{core: newVMCore("host", ModeLoose, log, nil, getter)}
}

// RunScript evaluates host-level setup code against the shared VM.
func (h *Host) RunScript(ctx context.Context, name, src string) error {
	return h.core.RunScript(ctx, name, src)
}

// Global returns the ungated view over the shared VM.
func (h *Host) Global() types.GlobalLike {
	return &looseGlobal{vmCore: h.core}
}

// Console returns a copy of the captured host console output.
func (h *Host) Console() []LogEntry {
	return h.core.Console()
}
