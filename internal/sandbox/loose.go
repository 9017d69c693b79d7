package sandbox

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// looseGlobal is the ungated view over the shared host VM.
type looseGlobal struct {
	*vmCore
}

// Get reads a property; missing properties return nil.
func (g *looseGlobal) Get(name string) interface{} { return g.getProp(name) }

// Set writes a property.
func (g *looseGlobal) Set(name string, value interface{}) error { return g.setProp(name, value) }

// Has reports property presence.
func (g *looseGlobal) Has(name string) bool { return g.hasProp(name) }

// Delete removes a property.
func (g *looseGlobal) Delete(name string) error { return g.deleteProp(name) }

// Keys lists the current property names.
func (g *looseGlobal) Keys() []string { return g.keys() }

// looseBox is the snapshot boundary one loose instance maintains over the
// shared host VM. Mount snapshots the host globals and replays the recorded
// writes; unmount diffs against the snapshot, records changes and deletions,
// and restores the host.
type looseBox struct {
	core    *vmCore
	name    string
	exclude []string

	snapshot map[string]goja.Value
	modified map[string]goja.Value
	deleted  map[string]struct{}
}

func (b *looseBox) excluded(name string) bool {
	for _, pat := range b.exclude {
		if pat == name {
			return true
		}
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// mount captures the host snapshot and replays this instance's recorded
// mutations on top of it.
func (b *looseBox) mount() {
	c := b.core
	c.mu.Lock()
	defer c.unlockAndDrain()

	global := c.vm.GlobalObject()
	b.snapshot = make(map[string]goja.Value)
	for _, k := range global.Keys() {
		if b.excluded(k) {
			continue
		}
		b.snapshot[k] = global.Get(k)
	}

	for k, v := range b.modified {
		if err := global.Set(k, v); err != nil {
			c.log.Warn("replaying recorded write failed",
				zap.String("sandbox", b.name),
				zap.String("property", k),
				zap.Error(err))
		}
	}
	for k := range b.deleted {
		if err := global.Delete(k); err != nil {
			c.log.Warn("replaying recorded delete failed",
				zap.String("sandbox", b.name),
				zap.String("property", k),
				zap.Error(err))
		}
	}
}

// unmount diffs the host against the mount snapshot. Properties the
// instance added or changed are recorded and reverted; properties it
// deleted are recorded and restored.
func (b *looseBox) unmount() {
	c := b.core
	c.mu.Lock()
	defer c.unlockAndDrain()

	global := c.vm.GlobalObject()
	b.modified = make(map[string]goja.Value)
	b.deleted = make(map[string]struct{})

	seen := make(map[string]struct{})
	for _, k := range global.Keys() {
		if b.excluded(k) {
			continue
		}
		seen[k] = struct{}{}
		cur := global.Get(k)
		prev, had := b.snapshot[k]
		switch {
		case !had:
			b.modified[k] = cur
			if err := global.Delete(k); err != nil {
				c.log.Warn("restoring host global failed",
					zap.String("sandbox", b.name),
					zap.String("property", k),
					zap.Error(err))
			}
		case !cur.StrictEquals(prev):
			b.modified[k] = cur
			if err := global.Set(k, prev); err != nil {
				c.log.Warn("restoring host global failed",
					zap.String("sandbox", b.name),
					zap.String("property", k),
					zap.Error(err))
			}
		}
	}
	for k, prev := range b.snapshot {
		if _, ok := seen[k]; ok {
			continue
		}
		b.deleted[k] = struct{}{}
		if err := global.Set(k, prev); err != nil {
			c.log.Warn("restoring deleted host global failed",
				zap.String("sandbox", b.name),
				zap.String("property", k),
				zap.Error(err))
		}
	}
}
