package hooks

import (
	"context"

	"github.com/attax1994/qiankun/internal/shared/types"
)

// EngineFlag maintains the powered-by marker so applications can detect
// they run under the orchestrator. Set before load and before every mount,
// cleared before unmount.
func EngineFlag() Set {
	return Set{
		BeforeLoad:    []Hook{setPowered},
		BeforeMount:   []Hook{setPowered},
		BeforeUnmount: []Hook{clearPowered},
	}
}

func setPowered(_ context.Context, _ *types.AppDescriptor, global types.GlobalLike) error {
	return global.Set(PoweredByKey, true)
}

func clearPowered(_ context.Context, _ *types.AppDescriptor, global types.GlobalLike) error {
	return global.Delete(PoweredByKey)
}

// RuntimePublicPath injects the asset base path resolved from the
// application entry. Load sets it once; unmount clears it, and every
// remount after the first restores it before the application mounts.
func RuntimePublicPath(publicPath string) Set {
	if publicPath == "" {
		publicPath = "/"
	}

	mountedOnce := false
	inject := func(_ context.Context, _ *types.AppDescriptor, global types.GlobalLike) error {
		return global.Set(PublicPathKey, publicPath)
	}

	return Set{
		BeforeLoad: []Hook{inject},
		BeforeMount: []Hook{func(ctx context.Context, app *types.AppDescriptor, global types.GlobalLike) error {
			if !mountedOnce {
				// First mount follows load directly; the path is already there.
				return nil
			}
			return inject(ctx, app, global)
		}},
		BeforeUnmount: []Hook{func(_ context.Context, _ *types.AppDescriptor, global types.GlobalLike) error {
			mountedOnce = true
			return global.Delete(PublicPathKey)
		}},
	}
}

// Defaults returns the add-on hooks every application load receives,
// merged ahead of any user-supplied set.
func Defaults(publicPath string) Set {
	return Merge(EngineFlag(), RuntimePublicPath(publicPath))
}
