/*
Package engine orchestrates micro-application lifecycles.

# Overview

The engine turns a registered application descriptor into a live instance:
it fetches the bundle, wraps its template in a stable wrapper element,
creates the JavaScript isolation boundary, runs the lifecycle hook chains,
and hands the consumer a parcel config whose step chains drive mounting and
unmounting in a fixed order.

# Loading

LoadApp performs the load sequence on the caller's goroutine: derive the
instance identity, fetch the entry, evaluate the singular policy once,
wait out an exclusive predecessor, build and place the wrapper, create the
sandbox, run the BeforeLoad chain, evaluate the bundle's scripts, validate
its lifecycle exports, and bind the instance's slice of the state bus. The
returned getter assembles a ParcelConfig, optionally against an alternate
container for one activation.

# Transitions

Mount and unmount are chains of awaited steps. Every hook invocation,
sandbox toggle, render dispatch, and application callback is its own step;
a step's failure aborts the chain, propagates unmodified, and rolls nothing
back. The consumer serializes transitions per registration; the engine only
guarantees ordering inside one instance's chain plus the singular gate
across instances.

# Singular Mode

When the policy marks an application exclusive, its load and mount wait for
the previously installed token to resolve, and its own token is installed
after mounting completes and resolved after unmounting completes. The
verdict is evaluated once per load and cached, so an impure policy cannot
split one instance's behavior.
*/
package engine
