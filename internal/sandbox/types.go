package sandbox

import (
	"time"

	"github.com/attax1994/qiankun/internal/dom"
)

// Mode names the isolation flavor.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeLoose  Mode = "loose"
)

// maxConsoleEntries bounds the captured console ring per VM.
const maxConsoleEntries = 256

// LogEntry represents captured console output
type LogEntry struct {
	Level   string    // log, warn, error, info, debug
	Message string    // Log message
	Time    time.Time // Timestamp
}

// Options configures one sandbox instance.
type Options struct {
	// Name scopes diagnostics and compiled program names, typically the
	// instance id.
	Name string

	// ElementGetter resolves the instance's wrapper element (or isolated
	// sub-root) at call time. Document bridge queries are scoped to it.
	ElementGetter func() *dom.Element

	// Loose selects the snapshot boundary over the shared host VM instead
	// of a dedicated VM.
	Loose bool

	// Exclude lists property names that pass through the loose boundary
	// unrecorded, either exact names or doublestar globs.
	Exclude []string
}
