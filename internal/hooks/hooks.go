package hooks

import (
	"context"

	"github.com/attax1994/qiankun/internal/shared/types"
)

// Global property names advertised to sandboxed applications.
const (
	PoweredByKey  = "__POWERED_BY_QIANKUN__"
	PublicPathKey = "__INJECTED_PUBLIC_PATH_BY_QIANKUN__"
)

// Hook runs at one lifecycle point. It receives the application descriptor
// and the global the application's scripts execute against.
type Hook func(ctx context.Context, app *types.AppDescriptor, global types.GlobalLike) error

// Set groups hooks by lifecycle point.
type Set struct {
	BeforeLoad    []Hook
	BeforeMount   []Hook
	AfterMount    []Hook
	BeforeUnmount []Hook
	AfterUnmount  []Hook
}

// Merge concatenates sets in order. At every lifecycle point, hooks from
// earlier sets run before hooks from later ones.
func Merge(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out.BeforeLoad = append(out.BeforeLoad, s.BeforeLoad...)
		out.BeforeMount = append(out.BeforeMount, s.BeforeMount...)
		out.AfterMount = append(out.AfterMount, s.AfterMount...)
		out.BeforeUnmount = append(out.BeforeUnmount, s.BeforeUnmount...)
		out.AfterUnmount = append(out.AfterUnmount, s.AfterUnmount...)
	}
	return out
}

// Run executes a chain sequentially. Nil entries are skipped; the first
// failure aborts the rest of the chain and is returned exactly as the hook
// produced it.
func Run(ctx context.Context, chain []Hook, app *types.AppDescriptor, global types.GlobalLike) error {
	for _, hook := range chain {
		if hook == nil {
			continue
		}
		if err := hook(ctx, app, global); err != nil {
			return err
		}
	}
	return nil
}
