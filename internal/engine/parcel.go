package engine

import (
	"context"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// Step is one awaited unit of a lifecycle transition. A step's failure
// aborts the rest of its chain; completed steps are never rolled back.
type Step func(ctx context.Context) error

// ParcelConfig is the consumer-facing lifecycle of one loaded instance.
// Bootstrap runs once before the first mount; the Mount and Unmount chains
// run on every activation and deactivation; Update is nil unless the
// application exports it.
type ParcelConfig struct {
	// Name is the instance id, unique per load.
	Name string

	Bootstrap types.Bootstrap
	Mount     []Step
	Unmount   []Step
	Update    types.UpdateFn
}

// ParcelConfigGetter assembles a ParcelConfig. A non-nil remount container
// overrides the registered container for the activations driven by the
// returned config.
type ParcelConfigGetter func(remount dom.ContainerRef) *ParcelConfig

// RunSteps executes a transition chain in order, stopping at the first
// failure.
func RunSteps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
