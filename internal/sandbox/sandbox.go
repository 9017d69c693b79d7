package sandbox

import (
	"context"
	"sync"

	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// Factory creates sandbox instances. One factory serves the whole engine;
// loose instances share the factory's host VM.
type Factory struct {
	host    *Host
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewFactory creates a sandbox factory. host may be nil when loose mode is
// never requested.
func NewFactory(host *Host, log *logging.Logger, metrics *monitoring.Metrics) *Factory {
	if host != nil && host.core.metrics == nil {
		host.core.metrics = metrics
	}
	return &Factory{host: host, log: log, metrics: metrics}
}

// Create builds one isolation boundary per the options.
func (f *Factory) Create(opts Options) (*Instance, error) {
	if opts.Name == "" {
		return nil, types.ConfigErrorf("sandbox requires an instance name")
	}

	if opts.Loose {
		if f.host == nil {
			return nil, types.ConfigErrorf("loose sandbox for %s requires a host VM", opts.Name)
		}
		box := &looseBox{
			core:    f.host.core,
			name:    opts.Name,
			exclude: opts.Exclude,
		}
		return &Instance{
			name:    opts.Name,
			mode:    ModeLoose,
			global:  &looseGlobal{vmCore: f.host.core},
			console: f.host.core.Console,
			metrics: f.metrics,
			mountFn: func(context.Context) error {
				box.mount()
				return nil
			},
			unmountFn: func(context.Context) error {
				box.unmount()
				return nil
			},
		}, nil
	}

	core := newVMCore(opts.Name, ModeStrict, f.log, f.metrics, opts.ElementGetter)
	g := newStrictGlobal(core)
	return &Instance{
		name:    opts.Name,
		mode:    ModeStrict,
		global:  g,
		console: core.Console,
		metrics: f.metrics,
		mountFn: func(context.Context) error {
			g.activate()
			return nil
		},
		unmountFn: func(context.Context) error {
			g.deactivate()
			return nil
		},
	}, nil
}

// Instance is one live isolation boundary. Strict instances are born active:
// writes through Proxy work before the first Mount so load-time hooks can
// seed properties.
type Instance struct {
	name    string
	mode    Mode
	global  types.GlobalLike
	console func() []LogEntry
	metrics *monitoring.Metrics

	mu        sync.Mutex
	mounted   bool
	mountFn   func(context.Context) error
	unmountFn func(context.Context) error
}

// Name returns the instance name.
func (s *Instance) Name() string { return s.name }

// Mode returns the isolation flavor.
func (s *Instance) Mode() Mode { return s.mode }

// Proxy returns the execution global hooks and scripts run against.
func (s *Instance) Proxy() types.GlobalLike { return s.global }

// Console returns a copy of the captured console output.
func (s *Instance) Console() []LogEntry { return s.console() }

// Mount activates the boundary. Mounting an already-mounted instance is a
// no-op so a repeated engine step cannot clobber a loose snapshot baseline.
func (s *Instance) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}
	if err := s.mountFn(ctx); err != nil {
		return err
	}
	s.mounted = true
	if s.metrics != nil {
		s.metrics.IncSandboxes()
	}
	return nil
}

// Unmount deactivates the boundary.
func (s *Instance) Unmount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return nil
	}
	if err := s.unmountFn(ctx); err != nil {
		return err
	}
	s.mounted = false
	if s.metrics != nil {
		s.metrics.DecSandboxes()
	}
	return nil
}
