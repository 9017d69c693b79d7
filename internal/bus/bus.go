package bus

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/id"
)

// ErrNoChange reports a write that altered nothing, either because it was
// empty or because every key was undeclared.
var ErrNoChange = errors.New("global state unchanged")

// Listener observes state transitions. Both arguments are snapshots owned
// by the listener.
type Listener func(state, prev map[string]interface{})

// Bus is the shared state store. One Bus serves one engine.
type Bus struct {
	mu        sync.RWMutex
	state     map[string]interface{}
	listeners map[string]Listener
	log       *logging.Logger
}

// New builds an empty bus.
func New(log *logging.Logger) *Bus {
	return &Bus{
		state:     make(map[string]interface{}),
		listeners: make(map[string]Listener),
		log:       log,
	}
}

// InitGlobalState replaces the shared state wholesale, notifies listeners,
// and returns host-privileged actions for the caller.
func (b *Bus) InitGlobalState(state map[string]interface{}) *Actions {
	b.mu.Lock()
	prev := cloneState(b.state)
	b.state = cloneState(state)
	next := cloneState(b.state)
	targets := b.listenersLocked()
	b.mu.Unlock()

	b.notify(targets, next, prev)
	return b.ForInstance(string(id.NewInstanceID("global")), true)
}

// ForInstance returns the actions bound to one instance id. Host-privileged
// actions may introduce top-level keys the init call never declared.
func (b *Bus) ForInstance(instance string, host bool) *Actions {
	return &Actions{bus: b, instance: instance, host: host}
}

// Snapshot returns a copy of the current state.
func (b *Bus) Snapshot() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneState(b.state)
}

// ListenerCount reports how many instances are currently subscribed.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Bus) register(instance string, cb Listener, fireImmediately bool) {
	if cb == nil {
		b.log.Warn("global state listener must not be nil", zap.String("instance", instance))
		return
	}

	b.mu.Lock()
	if _, exists := b.listeners[instance]; exists {
		b.log.Warn("global state listener already registered, overwriting",
			zap.String("instance", instance))
	}
	b.listeners[instance] = cb
	snapshot := cloneState(b.state)
	b.mu.Unlock()

	if fireImmediately {
		cb(snapshot, snapshot)
	}
}

func (b *Bus) unregister(instance string) {
	b.mu.Lock()
	delete(b.listeners, instance)
	b.mu.Unlock()
}

func (b *Bus) set(instance string, host bool, state map[string]interface{}) error {
	if len(state) == 0 {
		return ErrNoChange
	}

	b.mu.Lock()
	prev := cloneState(b.state)
	changed := 0
	for k, v := range state {
		if !host {
			if _, declared := b.state[k]; !declared {
				b.log.Warn("global state key not declared at init, ignored",
					zap.String("key", k),
					zap.String("instance", instance))
				continue
			}
		}
		b.state[k] = v
		changed++
	}
	if changed == 0 {
		b.mu.Unlock()
		return ErrNoChange
	}
	next := cloneState(b.state)
	targets := b.listenersLocked()
	b.mu.Unlock()

	b.notify(targets, next, prev)
	return nil
}

// listenersLocked snapshots the listener set in a stable order. Caller
// holds b.mu.
func (b *Bus) listenersLocked() []Listener {
	ids := make([]string, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.listeners[id])
	}
	return out
}

// notify runs outside the lock so listeners may write back into the bus.
func (b *Bus) notify(targets []Listener, next, prev map[string]interface{}) {
	for _, cb := range targets {
		cb(cloneState(next), cloneState(prev))
	}
}

// cloneState copies the top-level map. Top-level keys are the unit of
// change; nested values stay shared.
func cloneState(state map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// Actions is one instance's handle on the bus. It satisfies the
// orchestrator's bus contract.
type Actions struct {
	bus      *Bus
	instance string
	host     bool
}

// OnGlobalStateChange registers the instance's listener, replacing any
// previous one. With fireImmediately the listener runs right away with the
// current state as both arguments.
func (a *Actions) OnGlobalStateChange(cb func(state, prev map[string]interface{}), fireImmediately bool) {
	a.bus.register(a.instance, cb, fireImmediately)
}

// SetGlobalState merges the given top-level keys into the shared state and
// notifies every listener. Undeclared keys are dropped unless the actions
// are host-privileged.
func (a *Actions) SetGlobalState(state map[string]interface{}) error {
	return a.bus.set(a.instance, a.host, state)
}

// OffGlobalStateChange drops the instance's listener.
func (a *Actions) OffGlobalStateChange() {
	a.bus.unregister(a.instance)
}

// Instance returns the bound instance id.
func (a *Actions) Instance() string { return a.instance }
