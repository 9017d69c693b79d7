package loader

import (
	"context"
	"sync"

	"github.com/attax1994/qiankun/internal/shared/types"
)

// StaticLoader serves pre-registered bundles without retrieval, for
// embedded applications and tests.
type StaticLoader struct {
	mu      sync.RWMutex
	entries map[string]StaticEntry
}

// StaticEntry is one embedded bundle.
type StaticEntry struct {
	Template        string
	AssetPublicPath string
	Lifecycles      types.Lifecycles
}

// NewStatic creates an empty static loader.
func NewStatic() *StaticLoader {
	return &StaticLoader{entries: make(map[string]StaticEntry)}
}

// Register installs or replaces the bundle for an application name.
func (l *StaticLoader) Register(name string, entry StaticEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[name] = entry
}

// Load implements types.ContentLoader against the registered bundles.
func (l *StaticLoader) Load(_ context.Context, app *types.AppDescriptor) (*types.LoadResult, error) {
	l.mu.RLock()
	entry, ok := l.entries[app.Name]
	l.mu.RUnlock()
	if !ok {
		return nil, types.ConfigErrorf("no static bundle registered for %s", app.Name)
	}

	lc := entry.Lifecycles
	return &types.LoadResult{
		Template:        entry.Template,
		AssetPublicPath: entry.AssetPublicPath,
		ExecScripts: func(context.Context, types.GlobalLike, bool) (*types.Lifecycles, error) {
			if !lc.Valid() {
				return nil, types.ConfigErrorf("static bundle for %s is missing lifecycles", app.Name)
			}
			return &lc, nil
		},
	}, nil
}
