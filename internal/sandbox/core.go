package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// notification is a queued state-bus delivery for a busy VM.
type notification struct {
	cb    goja.Callable
	state map[string]interface{}
	prev  map[string]interface{}
}

// vmCore wraps a goja VM with the restricted global surface, script
// evaluation, and lifecycle export wrapping shared by both sandbox flavors.
type vmCore struct {
	name    string
	mode    Mode
	vm      *goja.Runtime
	mu      sync.Mutex
	log     *logging.Logger
	metrics *monitoring.Metrics

	elementGetter func() *dom.Element

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Deferred bus deliveries, drained when the VM goes idle
	pending   []notification
	pendingMu sync.Mutex

	// Captured entry module.exports
	exports goja.Value
}

// newVMCore creates a VM with the restricted global surface installed.
func newVMCore(name string, mode Mode, log *logging.Logger, metrics *monitoring.Metrics, elementGetter func() *dom.Element) *vmCore {
	c := &vmCore{
		name:          name,
		mode:          mode,
		vm:            goja.New(),
		log:           log,
		metrics:       metrics,
		elementGetter: elementGetter,
		console:       []LogEntry{},
	}
	c.setupGlobals()
	return c
}

// setupGlobals configures global objects and security
func (c *vmCore) setupGlobals() {
	vm := c.vm

	// Remove dangerous globals
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())

	// Aliases UMD bundles probe for
	global := vm.GlobalObject()
	vm.Set("window", global)
	vm.Set("self", global)
	vm.Set("globalThis", global)

	// Console forwarded to the host log and captured
	console := vm.NewObject()
	console.Set("log", c.makeConsoleFunc("log"))
	console.Set("info", c.makeConsoleFunc("info"))
	console.Set("debug", c.makeConsoleFunc("debug"))
	console.Set("warn", c.makeConsoleFunc("warn"))
	console.Set("error", c.makeConsoleFunc("error"))
	vm.Set("console", console)

	// Inert timers
	noop := func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)

	if c.elementGetter != nil {
		c.injectDocument()
	}
}

// makeConsoleFunc creates a console function
func (c *vmCore) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var sb strings.Builder
		for i, arg := range call.Arguments {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(arg.String())
		}
		msg := sb.String()

		c.consoleMu.Lock()
		if len(c.console) == maxConsoleEntries {
			c.console = c.console[1:]
		}
		c.console = append(c.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		c.consoleMu.Unlock()

		fields := []zap.Field{zap.String("sandbox", c.name), zap.String("level", level)}
		switch level {
		case "error":
			c.log.Error("console: "+msg, fields...)
		case "warn":
			c.log.Warn("console: "+msg, fields...)
		default:
			c.log.Debug("console: "+msg, fields...)
		}
		return goja.Undefined()
	}
}

// Console returns a copy of the captured console output.
func (c *vmCore) Console() []LogEntry {
	c.consoleMu.Lock()
	defer c.consoleMu.Unlock()
	return append([]LogEntry{}, c.console...)
}

// guard interrupts the VM when ctx ends. The returned stop function must be
// called on the evaluating goroutine once the evaluation returns.
func (c *vmCore) guard(ctx context.Context) func() {
	if ctx == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()
	return func() {
		close(done)
		c.vm.ClearInterrupt()
	}
}

// runLocked compiles and evaluates one script. Caller holds c.mu.
func (c *vmCore) runLocked(ctx context.Context, name, src string) (goja.Value, error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	stop := c.guard(ctx)
	v, err := c.vm.RunProgram(prog)
	stop()

	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", name, err)
	}
	return v, nil
}

// RunScript evaluates one bundle script against the global.
func (c *vmCore) RunScript(ctx context.Context, name, src string) error {
	c.mu.Lock()
	defer c.unlockAndDrain()

	_, err := c.runLocked(ctx, name, src)
	c.recordEval(err)
	return err
}

// RunEntryScript evaluates the bundle's entry script with a CommonJS module
// shim and captures module.exports for lifecycle resolution.
func (c *vmCore) RunEntryScript(ctx context.Context, name, src string) error {
	c.mu.Lock()
	defer c.unlockAndDrain()

	module := c.vm.NewObject()
	exportsObj := c.vm.NewObject()
	module.Set("exports", exportsObj)
	c.vm.Set("module", module)
	c.vm.Set("exports", exportsObj)

	_, err := c.runLocked(ctx, name, src)
	if err == nil {
		c.exports = module.Get("exports")
	}

	// The shim must not outlive the entry evaluation.
	c.vm.Set("module", goja.Undefined())
	c.vm.Set("exports", goja.Undefined())

	c.recordEval(err)
	return err
}

// BundleLifecycles resolves the evaluated bundle's lifecycle exports:
// module.exports of the entry script first, then the global property named
// after the application.
func (c *vmCore) BundleLifecycles(appName string) (*types.Lifecycles, error) {
	c.mu.Lock()
	defer c.unlockAndDrain()

	if lc := c.lifecyclesFromValue(c.exports, appName); lc != nil {
		return lc, nil
	}
	if lc := c.lifecyclesFromValue(c.vm.GlobalObject().Get(appName), appName); lc != nil {
		return lc, nil
	}
	return nil, types.ConfigErrorf("application %s exported no bootstrap/mount/unmount lifecycles", appName)
}

func (c *vmCore) lifecyclesFromValue(v goja.Value, appName string) *types.Lifecycles {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(c.vm)

	bootstrap, okB := goja.AssertFunction(obj.Get("bootstrap"))
	mount, okM := goja.AssertFunction(obj.Get("mount"))
	unmount, okU := goja.AssertFunction(obj.Get("unmount"))
	if !okB || !okM || !okU {
		return nil
	}
	update, hasUpdate := goja.AssertFunction(obj.Get("update"))

	lc := &types.Lifecycles{
		Bootstrap: func(ctx context.Context) error {
			return c.invoke(ctx, bootstrap, func() goja.Value {
				obj := c.vm.NewObject()
				obj.Set("name", appName)
				return obj
			})
		},
		Mount: func(ctx context.Context, mc types.MountContext) error {
			return c.invoke(ctx, mount, func() goja.Value {
				return c.mountProps(appName, mc)
			})
		},
		Unmount: func(ctx context.Context, mc types.MountContext) error {
			return c.invoke(ctx, unmount, func() goja.Value {
				return c.mountProps(appName, mc)
			})
		},
	}
	if hasUpdate {
		lc.Update = func(ctx context.Context, props map[string]interface{}) error {
			return c.invoke(ctx, update, func() goja.Value {
				obj := c.vm.NewObject()
				obj.Set("name", appName)
				for k, v := range props {
					obj.Set(k, v)
				}
				return obj
			})
		}
	}
	return lc
}

// invoke calls one JS lifecycle function. The props value is built under the
// VM lock; a returned promise must already be settled.
func (c *vmCore) invoke(ctx context.Context, fn goja.Callable, buildArg func() goja.Value) error {
	c.mu.Lock()
	defer c.unlockAndDrain()

	arg := buildArg()
	stop := c.guard(ctx)
	v, err := fn(goja.Undefined(), arg)
	stop()

	if err != nil {
		return err
	}
	return c.settled(v)
}

// settled enforces the no-event-loop policy: a returned promise is fine if
// fulfilled, an error if rejected or still pending.
func (c *vmCore) settled(v goja.Value) error {
	if v == nil {
		return nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return nil
	case goja.PromiseStateRejected:
		return fmt.Errorf("lifecycle promise rejected: %s", promiseResult(p))
	default:
		return fmt.Errorf("lifecycle promise still pending, asynchronous work must settle before returning")
	}
}

func promiseResult(p *goja.Promise) string {
	if r := p.Result(); r != nil {
		return r.String()
	}
	return "<no result>"
}

func (c *vmCore) recordEval(err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordSandboxEval(string(c.mode), status)
}

// Property access backing the GlobalLike implementations.

func (c *vmCore) getProp(name string) interface{} {
	c.mu.Lock()
	defer c.unlockAndDrain()
	v := c.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func (c *vmCore) setProp(name string, value interface{}) error {
	c.mu.Lock()
	defer c.unlockAndDrain()
	return c.vm.GlobalObject().Set(name, value)
}

func (c *vmCore) hasProp(name string) bool {
	c.mu.Lock()
	defer c.unlockAndDrain()
	v := c.vm.GlobalObject().Get(name)
	return v != nil && !goja.IsUndefined(v)
}

func (c *vmCore) deleteProp(name string) error {
	c.mu.Lock()
	defer c.unlockAndDrain()
	return c.vm.GlobalObject().Delete(name)
}

func (c *vmCore) keys() []string {
	c.mu.Lock()
	defer c.unlockAndDrain()
	return c.vm.GlobalObject().Keys()
}

// Deferred bus delivery.

// dispatchListener delivers a state-bus notification to a JS callback. A
// busy VM queues the delivery; it drains when the current evaluation
// returns.
func (c *vmCore) dispatchListener(cb goja.Callable, state, prev map[string]interface{}) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, notification{cb: cb, state: state, prev: prev})
	c.pendingMu.Unlock()

	if c.mu.TryLock() {
		c.unlockAndDrain()
	}
}

// drainLocked delivers queued notifications. Caller holds c.mu.
func (c *vmCore) drainLocked() {
	for {
		c.pendingMu.Lock()
		if len(c.pending) == 0 {
			c.pendingMu.Unlock()
			return
		}
		n := c.pending[0]
		c.pending = c.pending[1:]
		c.pendingMu.Unlock()

		if _, err := n.cb(goja.Undefined(), c.vm.ToValue(n.state), c.vm.ToValue(n.prev)); err != nil {
			c.log.Warn("global state listener failed",
				zap.String("sandbox", c.name),
				zap.Error(err))
		}
	}
}

// unlockAndDrain releases the VM after delivering queued notifications. It
// re-checks after unlocking so deliveries that raced the release are not
// stranded.
func (c *vmCore) unlockAndDrain() {
	c.drainLocked()
	c.mu.Unlock()
	for {
		c.pendingMu.Lock()
		empty := len(c.pending) == 0
		c.pendingMu.Unlock()
		if empty {
			return
		}
		if !c.mu.TryLock() {
			// Whoever holds the VM drains on exit.
			return
		}
		c.drainLocked()
		c.mu.Unlock()
	}
}
