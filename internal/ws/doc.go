// Package ws streams cross-application state over WebSocket.
//
// Each connection subscribes to the global state bus under its own client
// id. Every state transition is pushed to the client as a JSON frame with
// the new and previous snapshots; the client may write state back, request
// a snapshot, or ping.
//
// Message Types (Client → Server):
//   - set_state: merge top-level keys into the shared state
//   - snapshot: request the current state
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: connection established, carries the client id and state
//   - state: a state transition, carries new and previous snapshots
//   - snapshot: reply to a snapshot request
//   - pong: reply to a ping
//   - error: a request failed
//
// Writes to the socket go through a single writer goroutine; bus
// notifications arriving faster than the client drains them are dropped.
//
// Example Usage:
//
//	handler := ws.NewHandler(eng.Bus(), metrics, log)
//	router.GET("/stream", handler.HandleConnection)
package ws
