// Package bus implements the shared state channel between the host and
// mounted applications.
//
// State is a flat map of top-level keys. The host declares the initial key
// set and may introduce new keys later; applications can only write keys
// that were declared, anything else is dropped with a warning. Every write
// notifies all registered listeners with fresh snapshots of the new and
// previous state.
//
// Each instance id holds at most one listener. The orchestrator drops an
// application's listener automatically when the application unmounts, so
// leaked callbacks cannot outlive their instance.
package bus
