package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/bus"
	"github.com/attax1994/qiankun/internal/config"
	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/hooks"
	"github.com/attax1994/qiankun/internal/loader"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/render"
	"github.com/attax1994/qiankun/internal/sandbox"
	"github.com/attax1994/qiankun/internal/shared/id"
	"github.com/attax1994/qiankun/internal/shared/types"
	"github.com/attax1994/qiankun/internal/singular"
)

// Engine builds lifecycle descriptors for micro-applications. One engine
// serves one host document; instances loaded through it share the state bus
// and the singular gate.
type Engine struct {
	doc     *dom.Document
	loader  types.ContentLoader
	factory *sandbox.Factory
	bus     *bus.Bus
	hooks   hooks.Set
	policy  singular.Policy
	seq     singular.Sequencer
	ids     *id.Generator
	log     *logging.Logger
	metrics *monitoring.Metrics

	strictSandbox bool
	isolatedRoot  bool
	scopedCSS     bool

	active atomic.Int64
}

// Options configures an engine. Document, Loader, and Sandbox are required;
// everything else has a usable default.
type Options struct {
	Document *dom.Document
	Loader   types.ContentLoader
	Sandbox  *sandbox.Factory

	// Bus carries cross-application state. Defaults to a fresh empty bus.
	Bus *bus.Bus

	Config config.EngineConfig

	// Hooks are caller-supplied lifecycle hooks, merged after the engine's
	// defaults so the environment marks are in place first.
	Hooks hooks.Set

	// Policy overrides Config.Singular with a per-application verdict.
	Policy singular.Policy

	Logger  *logging.Logger
	Metrics *monitoring.Metrics

	// IDs defaults to the process-wide instance id generator.
	IDs *id.Generator
}

// New builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.Document == nil {
		return nil, types.ConfigErrorf("engine requires a host document")
	}
	if opts.Loader == nil {
		return nil, types.ConfigErrorf("engine requires a content loader")
	}
	if opts.Sandbox == nil {
		return nil, types.ConfigErrorf("engine requires a sandbox factory")
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		// Keep telemetry calls unconditional; an unexported registry is
		// cheaper than nil checks on every lifecycle step.
		metrics = monitoring.NewMetricsWith(prometheus.NewRegistry())
	}
	b := opts.Bus
	if b == nil {
		b = bus.New(log)
	}
	ids := opts.IDs
	if ids == nil {
		ids = id.Default()
	}
	policy := opts.Policy
	if policy == nil {
		policy = singular.Always(opts.Config.Singular)
	}

	return &Engine{
		doc:           opts.Document,
		loader:        opts.Loader,
		factory:       opts.Sandbox,
		bus:           b,
		hooks:         opts.Hooks,
		policy:        policy,
		ids:           ids,
		log:           log,
		metrics:       metrics,
		strictSandbox: opts.Config.StrictIsolation,
		isolatedRoot:  opts.Config.IsolatedRoot,
		scopedCSS:     opts.Config.ScopedCSS,
	}, nil
}

// NewWithDefaults wires an engine from config alone: an HTTP content loader
// and a sandbox factory with a host VM rooted in doc.
func NewWithDefaults(doc *dom.Document, cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics) (*Engine, error) {
	host := sandbox.NewHost(log, doc)
	return New(Options{
		Document: doc,
		Loader:   loader.New(cfg.Loader, log),
		Sandbox:  sandbox.NewFactory(host, log, metrics),
		Config:   cfg.Engine,
		Logger:   log,
		Metrics:  metrics,
	})
}

// Bus returns the engine's state bus, for host-side initialization.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Document returns the host document instances render into.
func (e *Engine) Document() *dom.Document { return e.doc }

// Mounted reports how many instances are currently mounted.
func (e *Engine) Mounted() int { return int(e.active.Load()) }

// LoadApp fetches, evaluates, and wires one application, returning the
// getter that assembles its lifecycle steps. The load runs on the caller's
// goroutine and honors ctx at every suspension point.
func (e *Engine) LoadApp(ctx context.Context, desc *types.AppDescriptor) (ParcelConfigGetter, error) {
	if desc == nil || desc.Name == "" {
		return nil, types.ConfigErrorf("application requires a name")
	}
	if desc.Render != nil && e.isolatedRoot {
		return nil, types.ConfigErrorf("application %s: isolated sub-roots cannot be combined with a custom render function", desc.Name)
	}
	desc = desc.Clone()

	instID := e.ids.Instance(desc.Name)
	log := e.log.WithApp(desc.Name, instID.String())
	log.Info("loading application", zap.String("entry", desc.Entry))

	a := &instance{
		id:     instID,
		desc:   desc,
		engine: e,
		log:    log,
		status: types.StatusCreated,
	}

	timer := monitoring.NewTimer(e.metrics, desc.Name, "load")
	fail := func(err error) (ParcelConfigGetter, error) {
		timer.Stop("error")
		e.metrics.RecordLifecycleError(desc.Name, "load", errorKind(err))
		log.Error("load failed", zap.Error(err))
		return nil, err
	}

	a.setStatus(types.StatusLoading)

	res, err := e.loader.Load(ctx, desc)
	if err != nil {
		return fail(err)
	}
	a.template = res.Template

	// One verdict per load; an impure policy cannot split this instance.
	a.singular = e.policy(desc)
	if a.singular {
		if err := e.seq.Wait(ctx); err != nil {
			return fail(fmt.Errorf("waiting for singular predecessor: %w", err))
		}
	}

	wrapper, subRoot, err := BuildWrapper(e.doc, desc.Name, instID, a.template, e.isolatedRoot, e.scopedCSS, log)
	if err != nil {
		return fail(err)
	}
	a.wrapper, a.subRoot = wrapper, subRoot

	a.render = render.NewDispatcher(e.doc, desc, log)
	if err := a.render.Render(types.RenderArgs{Element: wrapper, Loading: true}, types.PhaseLoading); err != nil {
		return fail(err)
	}

	box, err := e.factory.Create(sandbox.Options{
		Name:          instID.String(),
		ElementGetter: a.containerElement,
		Loose:         !e.strictSandbox,
	})
	if err != nil {
		return fail(err)
	}
	a.sandbox = box

	a.chain = hooks.Merge(hooks.Defaults(res.AssetPublicPath), e.hooks)
	if err := hooks.Run(ctx, a.chain.BeforeLoad, desc, box.Proxy()); err != nil {
		return fail(err)
	}

	lc, err := res.ExecScripts(ctx, box.Proxy(), false)
	if err != nil {
		return fail(err)
	}
	if !lc.Valid() {
		return fail(types.ConfigErrorf("application %s exports are missing mandatory lifecycles", desc.Name))
	}
	a.lifecycles = lc

	a.busActions = e.bus.ForInstance(instID.String(), false)

	timer.Stop("success")
	e.metrics.IncInstancesTotal()
	log.Info("application loaded",
		zap.Int("scripts", len(res.Scripts)),
		zap.Bool("singular", a.singular))

	return a.parcelConfig, nil
}

// recordActive moves the mounted gauge by delta.
func (e *Engine) recordActive(delta int64) {
	e.metrics.SetInstancesActive(int(e.active.Add(delta)))
}

func errorKind(err error) string {
	if types.IsConfigError(err) {
		return "config"
	}
	return "runtime"
}
