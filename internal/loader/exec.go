package loader

import (
	"context"
	"fmt"

	"github.com/attax1994/qiankun/internal/shared/types"
)

// scriptSource is one script ready for evaluation.
type scriptSource struct {
	name  string
	src   string
	entry bool
}

// scriptEngine is the evaluation surface a sandbox-backed global exposes.
type scriptEngine interface {
	RunScript(ctx context.Context, name, src string) error
	RunEntryScript(ctx context.Context, name, src string) error
	BundleLifecycles(appName string) (*types.Lifecycles, error)
}

// execScripts binds the collected sources into the LoadResult executor.
// The flagged entry script, or the last one when none is flagged, gets the
// module shim.
func execScripts(appName string, scripts []scriptSource) func(context.Context, types.GlobalLike, bool) (*types.Lifecycles, error) {
	entryIdx := len(scripts) - 1
	for i, s := range scripts {
		if s.entry {
			entryIdx = i
			break
		}
	}

	return func(ctx context.Context, global types.GlobalLike, strict bool) (*types.Lifecycles, error) {
		eng, ok := global.(scriptEngine)
		if !ok {
			return nil, types.ConfigErrorf("global for %s cannot evaluate scripts", appName)
		}
		for i, s := range scripts {
			src := s.src
			if strict {
				src = "\"use strict\";\n" + src
			}
			var err error
			if i == entryIdx {
				err = eng.RunEntryScript(ctx, s.name, src)
			} else {
				err = eng.RunScript(ctx, s.name, src)
			}
			if err != nil {
				return nil, fmt.Errorf("execute %s: %w", s.name, err)
			}
		}
		return eng.BundleLifecycles(appName)
	}
}
