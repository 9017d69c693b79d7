/*
Package sandbox provides JavaScript execution isolation for micro-applications.

# Overview

Each application instance executes inside an isolation boundary built on the
goja JavaScript engine. Two flavors exist:

  - Strict: a dedicated VM per instance. The VM's global object backs the
    instance's view of shared state; nothing leaks between instances.
  - Loose: a snapshot boundary over the shared host VM. Mounting snapshots
    the host globals and replays the instance's recorded writes; unmounting
    diffs against the snapshot, records the changes, and restores the host.

Both flavors seed the same restricted global surface: a console forwarded to
the host log, inert timers, window/self/globalThis aliases for UMD bundles,
and a document bridge whose queries resolve against the instance's wrapper
element at call time.

# Script Evaluation

Bundle scripts are evaluated against the instance's global. The entry script
gets a CommonJS module shim; lifecycle exports are resolved from
module.exports first, then from the global property named after the
application. Exports are wrapped into Go callbacks that run on the owning
VM, honor context cancellation through VM interrupts, and require returned
promises to be settled.

# Security Model

Sandboxed code cannot:
  - Access filesystem or network directly
  - Execute native code or spawn processes
  - Schedule timers that outlive an evaluation

A write to an inactive strict sandbox is dropped with a warning rather than
applied, so stale callbacks cannot mutate state after unmount.

# Concurrency

A VM runs one evaluation at a time. State-bus notifications targeting a busy
VM are queued and delivered when the current evaluation returns, preserving
the cooperative suspension-point model. Loose sandboxes additionally assume
exclusive sequencing: two loose instances mounted concurrently would trample
each other's snapshots.

# Usage Example

	host := sandbox.NewHost(logger, doc)
	factory := sandbox.NewFactory(host, logger, metrics)

	inst, err := factory.Create(sandbox.Options{
		Name:          "orders",
		ElementGetter: wrapperGetter,
	})
	if err != nil {
		return err
	}
	if err := inst.Mount(ctx); err != nil {
		return err
	}
*/
package sandbox
