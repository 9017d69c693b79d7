package render

import (
	"sync"

	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// Dispatcher renders one application's wrapper element into its container.
type Dispatcher struct {
	doc       *dom.Document
	appName   string
	container dom.ContainerRef
	legacy    types.LegacyRender
	log       *logging.Logger
	warnOnce  sync.Once
}

// NewDispatcher builds a dispatcher for one load of app against doc.
func NewDispatcher(doc *dom.Document, app *types.AppDescriptor, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		doc:       doc,
		appName:   app.Name,
		container: app.Container,
		legacy:    app.Render,
		log:       log,
	}
}

// Render performs one dispatch. The target container is resolved fresh on
// every call; args.RemountContainer overrides the configured container for
// this call only. A nil args.Element clears the container.
func (d *Dispatcher) Render(args types.RenderArgs, phase types.Phase) error {
	if d.legacy != nil {
		d.warnOnce.Do(func() {
			d.log.Warn("custom render function is deprecated, configure a container element instead",
				zap.String("app", d.appName))
		})
		return d.legacy(args, phase)
	}

	target := args.RemountContainer
	if target == nil {
		target = d.container
	}
	if target == nil {
		if phase == types.PhaseUnmounted {
			return nil
		}
		return types.ConfigErrorf("no target container configured for %s", d.appName)
	}

	containerEl, err := target.Resolve(d.doc)
	if err != nil {
		return types.ConfigErrorf("target container %s for %s: %w", target, d.appName, err)
	}
	if containerEl == nil {
		if phase == types.PhaseUnmounted {
			return nil
		}
		return missingContainer(target, d.appName, phase)
	}

	// Already placed: leave the subtree alone.
	if args.Element != nil && (containerEl.Same(args.Element) || containerEl.Contains(args.Element)) {
		return nil
	}

	containerEl.RemoveChildren()
	if args.Element != nil {
		containerEl.AppendChild(args.Element)
	}
	return nil
}

func missingContainer(target dom.ContainerRef, appName string, phase types.Phase) error {
	switch phase {
	case types.PhaseLoading, types.PhaseMounting:
		return types.ConfigErrorf("target container %s does not exist while %s is %s", target, appName, phase)
	case types.PhaseMounted:
		return types.ConfigErrorf("target container %s does not exist after %s mounted", target, appName)
	default:
		return types.ConfigErrorf("target container %s does not exist while rendering %s", target, appName)
	}
}
