package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/engine"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// ErrNotRegistered reports an operation on an unknown application name.
var ErrNotRegistered = errors.New("not registered")

// registration is one named application and its live state. transition
// serializes lifecycle calls; mu guards the snapshot fields readers see.
type registration struct {
	transition sync.Mutex

	mu           sync.Mutex
	desc         *types.AppDescriptor
	status       types.Status
	instance     string
	registeredAt time.Time

	getter       engine.ParcelConfigGetter
	parcel       *engine.ParcelConfig
	bootstrapped bool
}

func (r *registration) setStatus(s types.Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// reset drops the loaded instance so the next mount starts from a fresh
// load. Caller holds r.transition.
func (r *registration) reset() {
	r.mu.Lock()
	r.getter = nil
	r.parcel = nil
	r.bootstrapped = false
	r.instance = ""
	r.status = types.StatusCreated
	r.mu.Unlock()
}

// AppInfo is one registration's reportable state.
type AppInfo struct {
	Name         string       `json:"name"`
	Entry        string       `json:"entry"`
	Status       types.Status `json:"status"`
	Instance     string       `json:"instance,omitempty"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// Manager keeps the registration set and drives transitions through the
// engine.
type Manager struct {
	engine  *engine.Engine
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu   sync.RWMutex
	apps map[string]*registration
}

// NewManager creates an empty registry bound to eng.
func NewManager(eng *engine.Engine, log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		engine:  eng,
		log:     log,
		metrics: metrics,
		apps:    make(map[string]*registration),
	}
}

// Register adds an application. Names are unique; registering an existing
// name is an error so a live instance cannot be re-pointed silently.
func (m *Manager) Register(desc *types.AppDescriptor) error {
	if desc == nil || desc.Name == "" {
		return types.ConfigErrorf("registration requires an application name")
	}
	if desc.Entry == "" {
		return types.ConfigErrorf("application %s: registration requires an entry", desc.Name)
	}
	if desc.Container != nil {
		// A dry-run resolve rejects malformed expressions now. Not finding
		// the element is fine; the page may grow it before mount.
		if _, err := desc.Container.Resolve(m.engine.Document()); err != nil {
			return types.ConfigErrorf("application %s: %v", desc.Name, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.apps[desc.Name]; exists {
		return types.ConfigErrorf("application %s is already registered", desc.Name)
	}
	m.apps[desc.Name] = &registration{
		desc:         desc.Clone(),
		status:       types.StatusCreated,
		registeredAt: time.Now(),
	}
	m.recordCount()

	m.log.Info("application registered",
		zap.String("app", desc.Name),
		zap.String("entry", desc.Entry))
	return nil
}

// Deregister removes an application. A mounted application must be
// unmounted first.
func (m *Manager) Deregister(name string) error {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.transition.Lock()
	defer reg.transition.Unlock()

	reg.mu.Lock()
	status := reg.status
	reg.mu.Unlock()
	if status == types.StatusMounting || status == types.StatusMounted {
		return fmt.Errorf("application %s is %s, unmount it before deregistering", name, status)
	}

	m.mu.Lock()
	delete(m.apps, name)
	m.recordCount()
	m.mu.Unlock()

	m.log.Info("application deregistered", zap.String("app", name))
	return nil
}

// Get returns one registration's state.
func (m *Manager) Get(name string) (AppInfo, bool) {
	m.mu.RLock()
	reg, ok := m.apps[name]
	m.mu.RUnlock()
	if !ok {
		return AppInfo{}, false
	}
	return reg.info(), true
}

// List returns every registration's state, sorted by name.
func (m *Manager) List() []AppInfo {
	m.mu.RLock()
	out := make([]AppInfo, 0, len(m.apps))
	for _, reg := range m.apps {
		out = append(out, reg.info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *registration) info() AppInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return AppInfo{
		Name:         r.desc.Name,
		Entry:        r.desc.Entry,
		Status:       r.status,
		Instance:     r.instance,
		RegisteredAt: r.registeredAt,
	}
}

// Mount activates an application. The first mount of a load also runs
// bootstrap. A non-nil container overrides the registered one for this
// activation and the matching unmount.
func (m *Manager) Mount(ctx context.Context, name string, container dom.ContainerRef) error {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.transition.Lock()
	defer reg.transition.Unlock()

	reg.mu.Lock()
	status := reg.status
	desc := reg.desc
	getter := reg.getter
	reg.mu.Unlock()

	if status == types.StatusMounted || status == types.StatusMounting {
		return fmt.Errorf("application %s is already %s", name, status)
	}

	if getter == nil {
		getter, err = m.engine.LoadApp(ctx, desc)
		if err != nil {
			return err
		}
		reg.mu.Lock()
		reg.getter = getter
		reg.bootstrapped = false
		reg.mu.Unlock()
	}

	parcel := getter(container)
	reg.mu.Lock()
	reg.parcel = parcel
	reg.instance = parcel.Name
	reg.status = types.StatusMounting
	bootstrapped := reg.bootstrapped
	reg.mu.Unlock()

	if !bootstrapped {
		if err := parcel.Bootstrap(ctx); err != nil {
			reg.reset()
			return err
		}
		reg.mu.Lock()
		reg.bootstrapped = true
		reg.mu.Unlock()
	}

	if err := engine.RunSteps(ctx, parcel.Mount); err != nil {
		// The instance is in an undefined intermediate state; the next
		// mount must start from a fresh load.
		reg.reset()
		return err
	}

	reg.setStatus(types.StatusMounted)
	m.log.Info("application mounted",
		zap.String("app", name),
		zap.String("instance", parcel.Name))
	return nil
}

// Unmount deactivates a mounted application. The loaded instance is kept
// for remounting.
func (m *Manager) Unmount(ctx context.Context, name string) error {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.transition.Lock()
	defer reg.transition.Unlock()

	reg.mu.Lock()
	status := reg.status
	parcel := reg.parcel
	reg.mu.Unlock()

	if status != types.StatusMounted || parcel == nil {
		return fmt.Errorf("application %s is %s, not mounted", name, status)
	}

	reg.setStatus(types.StatusUnmounting)
	if err := engine.RunSteps(ctx, parcel.Unmount); err != nil {
		// The teardown did not finish, so the application is still mounted;
		// keeping the parcel lets the caller retry the unmount.
		reg.setStatus(types.StatusMounted)
		return err
	}

	reg.setStatus(types.StatusUnmounted)
	m.log.Info("application unmounted", zap.String("app", name))
	return nil
}

// Update forwards new props to a mounted application.
func (m *Manager) Update(ctx context.Context, name string, props map[string]interface{}) error {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.transition.Lock()
	defer reg.transition.Unlock()

	reg.mu.Lock()
	parcel := reg.parcel
	status := reg.status
	reg.mu.Unlock()

	if status != types.StatusMounted || parcel == nil {
		return fmt.Errorf("application %s is %s, not mounted", name, status)
	}
	if parcel.Update == nil {
		return types.ConfigErrorf("application %s does not export an update lifecycle", name)
	}
	return parcel.Update(ctx, props)
}

// UnmountAll tears down every mounted application, continuing past
// failures. Used at shutdown.
func (m *Manager) UnmountAll(ctx context.Context) {
	for _, info := range m.List() {
		if info.Status != types.StatusMounted {
			continue
		}
		if err := m.Unmount(ctx, info.Name); err != nil {
			m.log.Warn("shutdown unmount failed",
				zap.String("app", info.Name),
				zap.Error(err))
		}
	}
}

func (m *Manager) lookup(name string) (*registration, error) {
	m.mu.RLock()
	reg, ok := m.apps[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("application %s is %w", name, ErrNotRegistered)
	}
	return reg, nil
}

// recordCount publishes the registry size. Caller holds m.mu.
func (m *Manager) recordCount() {
	if m.metrics != nil {
		m.metrics.SetRegistryApps(len(m.apps))
	}
}
