package loader

import (
	"errors"
	"net/url"
	"sync"
	"time"
)

// ErrCircuitOpen reports a fetch short-circuited because its origin's
// breaker is open.
var ErrCircuitOpen = errors.New("origin circuit is open")

// breakerCooloff is how long an open circuit rejects fetches before
// admitting a probe.
const breakerCooloff = 30 * time.Second

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// originBreaker is the circuit for one remote origin. Entry and asset
// fetches share it: consecutive failures up to the threshold open it,
// fetches then fail fast until the cool-off passes, and a single probe
// decides between closing and re-opening.
type originBreaker struct {
	mu        sync.Mutex
	threshold int

	state    breakerState
	failures int
	retryAt  time.Time
	probing  bool
}

// allow reports whether a fetch may proceed. An open circuit whose
// cool-off has passed moves to half-open; in half-open only one probe is
// admitted at a time.
func (b *originBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if time.Now().Before(b.retryAt) {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		b.probing = false
		fallthrough
	case breakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// report records an admitted fetch's outcome. The returned pair differs
// when the circuit changed state.
func (b *originBreaker) report(ok bool) (from, to breakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		if ok {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.threshold {
			return b.trip()
		}
	case breakerHalfOpen:
		b.probing = false
		if ok {
			b.state = breakerClosed
			b.failures = 0
			return breakerHalfOpen, breakerClosed
		}
		return b.trip()
	}
	return b.state, b.state
}

// trip opens the circuit and starts the cool-off. Caller holds b.mu.
func (b *originBreaker) trip() (from, to breakerState) {
	from = b.state
	b.state = breakerOpen
	b.failures = 0
	b.retryAt = time.Now().Add(breakerCooloff)
	return from, breakerOpen
}

// release frees the half-open probe slot without a verdict, for fetches
// that ended by cancellation rather than an origin response.
func (b *originBreaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// breakerSet holds one breaker per origin. A threshold of zero or less
// disables circuit breaking entirely.
type breakerSet struct {
	threshold int

	mu      sync.Mutex
	origins map[string]*originBreaker
}

func newBreakerSet(threshold int) *breakerSet {
	return &breakerSet{threshold: threshold, origins: make(map[string]*originBreaker)}
}

// forURL returns the breaker guarding the URL's origin, or nil when
// circuit breaking is disabled.
func (s *breakerSet) forURL(raw string) *originBreaker {
	if s.threshold <= 0 {
		return nil
	}
	origin := originOf(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.origins[origin]
	if b == nil {
		b = &originBreaker{threshold: s.threshold}
		s.origins[origin] = b
	}
	return b
}

// originOf reduces a URL to scheme://host. Unparseable URLs fall back to
// the raw string so they still share a breaker.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
