package types

import (
	"context"

	"github.com/attax1994/qiankun/internal/dom"
)

// Status represents instance lifecycle states.
type Status string

const (
	StatusCreated    Status = "created"
	StatusLoading    Status = "loading"
	StatusMounting   Status = "mounting"
	StatusMounted    Status = "mounted"
	StatusUnmounting Status = "unmounting"
	StatusUnmounted  Status = "unmounted"
)

// AppDescriptor describes one micro-application registration. It is
// immutable once handed to the orchestrator: the engine copies Props and
// never writes back.
type AppDescriptor struct {
	// Name is unique per registration and prefixes instance ids.
	Name string `json:"name"`

	// Entry locates the application bundle, typically an HTML entry URL.
	Entry string `json:"entry"`

	// Props are the initial properties passed to the mount callback.
	Props map[string]interface{} `json:"props,omitempty"`

	// Container is the default mount target, resolved at render time.
	// A parcel-config getter may override it per mount.
	Container dom.ContainerRef `json:"-"`

	// Render, when set, takes over element placement entirely (legacy
	// escape hatch). Mutually exclusive with strict style isolation.
	Render LegacyRender `json:"-"`
}

// Clone returns a copy with its own Props map, guarding descriptor
// immutability against later caller mutation.
func (a *AppDescriptor) Clone() *AppDescriptor {
	cp := *a
	if a.Props != nil {
		cp.Props = make(map[string]interface{}, len(a.Props))
		for k, v := range a.Props {
			cp.Props[k] = v
		}
	}
	return &cp
}

// Bootstrap runs once after load, before the first mount.
type Bootstrap func(ctx context.Context) error

// MountFn is the application-provided mount/unmount callback.
type MountFn func(ctx context.Context, mc MountContext) error

// UpdateFn receives prop changes after mount. Optional.
type UpdateFn func(ctx context.Context, props map[string]interface{}) error

// Lifecycles are the validated exports of a loaded bundle. Bootstrap,
// Mount, and Unmount are mandatory; Update may be nil.
type Lifecycles struct {
	Bootstrap Bootstrap
	Mount     MountFn
	Unmount   MountFn
	Update    UpdateFn
}

// Valid reports whether the mandatory lifecycle exports are present.
func (l *Lifecycles) Valid() bool {
	return l != nil && l.Bootstrap != nil && l.Mount != nil && l.Unmount != nil
}

// MountContext is what an application callback receives. Container resolves
// the live wrapper element (or its isolated sub-root) at call time.
type MountContext struct {
	Props     map[string]interface{}
	Container func() *dom.Element
	Bus       BusActions
}

// BusActions is the per-instance slice of the cross-application state bus.
// The channel is torn down when the owning instance unmounts.
type BusActions interface {
	// OnGlobalStateChange registers the instance's listener. With
	// fireImmediately set, the listener runs right away with the current
	// state as both arguments.
	OnGlobalStateChange(cb func(state, prev map[string]interface{}), fireImmediately bool)

	// SetGlobalState merges the given top-level keys into the shared state
	// and notifies every other instance's listener.
	SetGlobalState(state map[string]interface{}) error

	// OffGlobalStateChange drops the instance's listener.
	OffGlobalStateChange()
}
