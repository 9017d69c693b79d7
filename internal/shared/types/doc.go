// Package types provides the shared data structures of the micro-app host.
//
// This package defines the contracts crossed by every lifecycle component,
// keeping the orchestrator decoupled from the concrete loader, sandbox, and
// state-bus implementations.
//
// Core Types:
//   - AppDescriptor: registration-time description of a micro-application
//   - Lifecycles: the typed exports of a loaded bundle
//   - MountContext: what an application receives when mounted
//   - LoadResult / ContentLoader: the bundle retrieval contract
//   - GlobalLike: opaque execution-global capability
//   - BusActions: per-instance global-state channel
//
// Rendering Types:
//   - Phase: render phase enum (loading, mounting, mounted, unmounted)
//   - RenderArgs, LegacyRender: render dispatcher inputs
//
// State Management:
//   - Status: instance lifecycle state enum
//   - ConfigError: fatal configuration failure taxonomy
package types
