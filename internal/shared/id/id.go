// Package id generates per-load instance identities and request trace ids.
//
// Every load of a micro-application gets a fresh identity of the form
// <name>_<ULID>. The ULID contributes a millisecond timestamp plus random
// entropy, so identities are unique per load, sortable by load time, and
// readable in logs. The identity namespaces the sandbox, the state-bus
// channel, and telemetry markers for that load. Trace ids are bare ULIDs
// minted per HTTP request.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies one load of a micro-application.
type InstanceID string

// Generator issues instance ids. The zero value is not usable; construct
// with NewGenerator.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid entropy readers are not goroutine-safe
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Instance derives a fresh identity for one load of the named application.
func (g *Generator) Instance(name string) InstanceID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return InstanceID(name + "_" + u.String())
}

// NewInstanceID derives a fresh identity using the default generator.
func NewInstanceID(name string) InstanceID {
	return Default().Instance(name)
}

// Trace mints a bare ULID for request correlation.
func (g *Generator) Trace() string {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// NewTrace mints a trace id using the default generator.
func NewTrace() string {
	return Default().Trace()
}

func (id InstanceID) String() string { return string(id) }

// Name returns the application name the identity was derived from.
func (id InstanceID) Name() string {
	if i := strings.LastIndex(string(id), "_"); i > 0 {
		return string(id)[:i]
	}
	return string(id)
}

// Time extracts the load timestamp embedded in the identity.
func (id InstanceID) Time() (time.Time, error) {
	s := string(id)
	if i := strings.LastIndex(s, "_"); i >= 0 {
		s = s[i+1:]
	}
	u, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

// Slug returns the identity in a form safe for element ids and attribute
// values: lowercased, with runs of non-alphanumerics collapsed to single
// underscores.
func (id InstanceID) Slug() string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(string(id)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(sb.String(), "_")
}
