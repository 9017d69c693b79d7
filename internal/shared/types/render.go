package types

import "github.com/attax1994/qiankun/internal/dom"

// Phase names the render phases of one lifecycle transition. Container
// existence is mandatory for every phase except PhaseUnmounted.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseMounting  Phase = "mounting"
	PhaseMounted   Phase = "mounted"
	PhaseUnmounted Phase = "unmounted"
)

// RenderArgs carries one render dispatch. Element is nil on unmount;
// RemountContainer, when set, overrides the configured container for this
// call only.
type RenderArgs struct {
	Element          *dom.Element
	Loading          bool
	RemountContainer dom.ContainerRef
}

// LegacyRender is the deprecated application-supplied placement function.
// When present, the dispatcher delegates every call to it and performs no
// container management of its own.
type LegacyRender func(args RenderArgs, phase Phase) error
