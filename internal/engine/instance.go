package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/bus"
	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/hooks"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/render"
	"github.com/attax1994/qiankun/internal/sandbox"
	"github.com/attax1994/qiankun/internal/shared/id"
	"github.com/attax1994/qiankun/internal/shared/types"
	"github.com/attax1994/qiankun/internal/singular"
)

// instance is the mutable state of one application load. The step closures
// returned by parcelConfig all close over it; the consumer serializes
// transitions, the mutex guards fields the container accessor reads from
// application callbacks.
type instance struct {
	id     id.InstanceID
	desc   *types.AppDescriptor
	engine *Engine
	log    *logging.Logger
	render *render.Dispatcher

	mu       sync.Mutex
	status   types.Status
	wrapper  *dom.Element
	subRoot  *dom.Element
	marked   bool
	token    *singular.Token

	template   string
	sandbox    *sandbox.Instance
	lifecycles *types.Lifecycles
	chain      hooks.Set
	busActions *bus.Actions
	singular   bool
}

func (a *instance) setStatus(s types.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
	a.log.Debug("status changed", zap.String("status", string(s)))
}

// Status returns the current lifecycle state.
func (a *instance) Status() types.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// containerElement resolves the element application callbacks and document
// bridge queries scope to: the isolated sub-root when present, else the
// wrapper. Nil between unmount and the next wrapper rebuild.
func (a *instance) containerElement() *dom.Element {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subRoot != nil {
		return a.subRoot
	}
	return a.wrapper
}

func (a *instance) wrapperElement() *dom.Element {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wrapper
}

func (a *instance) mountContext() types.MountContext {
	return types.MountContext{
		Props:     a.desc.Props,
		Container: a.containerElement,
		Bus:       a.busActions,
	}
}

// ensureWrapper rebuilds the wrapper from the stored template after a prior
// unmount released it.
func (a *instance) ensureWrapper() error {
	a.mu.Lock()
	have := a.wrapper != nil
	a.mu.Unlock()
	if have {
		return nil
	}

	e := a.engine
	wrapper, subRoot, err := BuildWrapper(e.doc, a.desc.Name, a.id, a.template, e.isolatedRoot, e.scopedCSS, a.log)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.wrapper, a.subRoot = wrapper, subRoot
	a.mu.Unlock()
	return nil
}

// parcelConfig assembles the consumer-facing lifecycle. A non-nil remount
// container redirects placement for the activations this config drives.
func (a *instance) parcelConfig(remount dom.ContainerRef) *ParcelConfig {
	return &ParcelConfig{
		Name:      a.id.String(),
		Bootstrap: a.bootstrap,
		Mount:     a.mountSteps(remount),
		Unmount:   a.unmountSteps(remount),
		Update:    a.updateFn(),
	}
}

// bootstrap runs the application's bootstrap export. The consumer invokes
// it once, before the first mount.
func (a *instance) bootstrap(ctx context.Context) error {
	timer := monitoring.NewTimer(a.engine.metrics, a.desc.Name, "bootstrap")
	if err := a.lifecycles.Bootstrap(ctx); err != nil {
		timer.Stop("error")
		a.engine.metrics.RecordLifecycleError(a.desc.Name, "bootstrap", errorKind(err))
		a.log.Error("bootstrap failed", zap.Error(err))
		return err
	}
	timer.Stop("success")
	return nil
}

// mountSteps builds the mount chain. The same slice serves every activation
// of this load; the shared timer spans only the first, marking cycle.
func (a *instance) mountSteps(remount dom.ContainerRef) []Step {
	e := a.engine
	var timer *monitoring.Timer

	steps := []Step{
		// Mark the load's first activation.
		func(ctx context.Context) error {
			a.mu.Lock()
			first := !a.marked
			a.marked = true
			a.mu.Unlock()
			if first {
				timer = monitoring.NewTimer(e.metrics, a.desc.Name, "mount")
			}
			return nil
		},
		// Wait out an exclusive predecessor.
		func(ctx context.Context) error {
			if !a.singular {
				return nil
			}
			if err := e.seq.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for singular predecessor: %w", err)
			}
			return nil
		},
		// Place the wrapper, rebuilding it after a prior unmount released it.
		func(ctx context.Context) error {
			if s := a.Status(); s != types.StatusLoading && s != types.StatusUnmounted {
				return fmt.Errorf("application %s cannot mount while %s", a.desc.Name, s)
			}
			if err := a.ensureWrapper(); err != nil {
				return err
			}
			if err := a.render.Render(types.RenderArgs{
				Element:          a.wrapperElement(),
				Loading:          true,
				RemountContainer: remount,
			}, types.PhaseMounting); err != nil {
				return err
			}
			a.setStatus(types.StatusMounting)
			return nil
		},
		func(ctx context.Context) error {
			return a.sandbox.Mount(ctx)
		},
		func(ctx context.Context) error {
			return hooks.Run(ctx, a.chain.BeforeMount, a.desc, a.sandbox.Proxy())
		},
		func(ctx context.Context) error {
			return a.lifecycles.Mount(ctx, a.mountContext())
		},
		func(ctx context.Context) error {
			return a.render.Render(types.RenderArgs{
				Element:          a.wrapperElement(),
				RemountContainer: remount,
			}, types.PhaseMounted)
		},
		func(ctx context.Context) error {
			if err := hooks.Run(ctx, a.chain.AfterMount, a.desc, a.sandbox.Proxy()); err != nil {
				return err
			}
			a.setStatus(types.StatusMounted)
			e.recordActive(1)
			return nil
		},
		// Install the exclusivity token now that the mount completed.
		func(ctx context.Context) error {
			if !a.singular {
				return nil
			}
			if e.seq.Pending() {
				a.log.Warn("claiming singular token while the previous owner is still mounted")
			}
			a.mu.Lock()
			a.token = e.seq.Claim()
			a.mu.Unlock()
			return nil
		},
		// Observe the marking cycle's duration.
		func(ctx context.Context) error {
			if timer != nil {
				timer.Stop("success")
				timer = nil
			}
			return nil
		},
	}
	return a.observe("mount", steps)
}

// unmountSteps builds the unmount chain.
func (a *instance) unmountSteps(remount dom.ContainerRef) []Step {
	e := a.engine
	var timer *monitoring.Timer

	steps := []Step{
		func(ctx context.Context) error {
			timer = monitoring.NewTimer(e.metrics, a.desc.Name, "unmount")
			if err := hooks.Run(ctx, a.chain.BeforeUnmount, a.desc, a.sandbox.Proxy()); err != nil {
				return err
			}
			a.setStatus(types.StatusUnmounting)
			return nil
		},
		func(ctx context.Context) error {
			return a.lifecycles.Unmount(ctx, a.mountContext())
		},
		func(ctx context.Context) error {
			return a.sandbox.Unmount(ctx)
		},
		func(ctx context.Context) error {
			return hooks.Run(ctx, a.chain.AfterUnmount, a.desc, a.sandbox.Proxy())
		},
		// Clear the container, tear down this instance's bus channel, and
		// release the wrapper so a remount rebuilds it from the template.
		func(ctx context.Context) error {
			if err := a.render.Render(types.RenderArgs{RemountContainer: remount}, types.PhaseUnmounted); err != nil {
				return err
			}
			a.busActions.OffGlobalStateChange()
			a.mu.Lock()
			a.wrapper, a.subRoot = nil, nil
			a.status = types.StatusUnmounted
			a.mu.Unlock()
			e.recordActive(-1)
			return nil
		},
		func(ctx context.Context) error {
			a.mu.Lock()
			tok := a.token
			a.token = nil
			a.mu.Unlock()
			if tok != nil {
				if !e.seq.Installed(tok) {
					a.log.Warn("singular token superseded before release")
				}
				e.seq.Release(tok)
			}
			if timer != nil {
				timer.Stop("success")
			}
			return nil
		},
	}
	return a.observe("unmount", steps)
}

// updateFn passes the application's update export through, guarded to
// mounted instances. Nil when the bundle exports none.
func (a *instance) updateFn() types.UpdateFn {
	if a.lifecycles.Update == nil {
		return nil
	}
	return func(ctx context.Context, props map[string]interface{}) error {
		if s := a.Status(); s != types.StatusMounted {
			return fmt.Errorf("application %s cannot update while %s", a.desc.Name, s)
		}
		timer := monitoring.NewTimer(a.engine.metrics, a.desc.Name, "update")
		if err := a.lifecycles.Update(ctx, props); err != nil {
			timer.Stop("error")
			a.engine.metrics.RecordLifecycleError(a.desc.Name, "update", errorKind(err))
			return err
		}
		timer.Stop("success")
		return nil
	}
}

// observe wraps each step so the chain's first failure is counted and
// logged against op before it propagates.
func (a *instance) observe(op string, steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = func(ctx context.Context) error {
			if err := step(ctx); err != nil {
				a.engine.metrics.RecordLifecycleError(a.desc.Name, op, errorKind(err))
				a.log.Error(op+" step failed", zap.Error(err))
				return err
			}
			return nil
		}
	}
	return out
}
