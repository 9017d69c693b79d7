package sandbox

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// strictGlobal is the gated view over a dedicated VM. It is born active so
// lifecycle hooks can seed properties before the first mount.
type strictGlobal struct {
	*vmCore
	active atomic.Bool
}

func newStrictGlobal(core *vmCore) *strictGlobal {
	g := &strictGlobal{vmCore: core}
	g.active.Store(true)
	return g
}

func (g *strictGlobal) activate()   { g.active.Store(true) }
func (g *strictGlobal) deactivate() { g.active.Store(false) }

// Get reads a property; missing properties return nil.
func (g *strictGlobal) Get(name string) interface{} { return g.getProp(name) }

// Has reports property presence.
func (g *strictGlobal) Has(name string) bool { return g.hasProp(name) }

// Keys lists the current property names.
func (g *strictGlobal) Keys() []string { return g.keys() }

// Set writes a property. Writes while the sandbox is inactive are dropped
// with a warning.
func (g *strictGlobal) Set(name string, value interface{}) error {
	if !g.active.Load() {
		g.log.Warn("write to inactive sandbox dropped",
			zap.String("sandbox", g.name),
			zap.String("property", name))
		return nil
	}
	return g.setProp(name, value)
}

// Delete removes a property, subject to the same gating as Set.
func (g *strictGlobal) Delete(name string) error {
	if !g.active.Load() {
		g.log.Warn("delete on inactive sandbox dropped",
			zap.String("sandbox", g.name),
			zap.String("property", name))
		return nil
	}
	return g.deleteProp(name)
}
