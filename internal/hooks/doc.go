// Package hooks runs caller-supplied functions at fixed points of an
// application's lifecycle.
//
// A Set groups hooks by lifecycle point (before load, before/after mount,
// before/after unmount). Sets merge by concatenation, so built-in add-ons
// always run ahead of user hooks. Execution is sequential and the first
// failure aborts the chain.
//
// The built-in add-ons advertise the orchestrator to sandboxed code: the
// powered-by flag and the injected public path, maintained across
// mount/unmount cycles exactly as applications expect.
package hooks
