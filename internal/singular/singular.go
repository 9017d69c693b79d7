package singular

import (
	"context"
	"sync"

	"github.com/attax1994/qiankun/internal/shared/types"
)

// Policy decides whether an application mounts exclusively. The engine
// evaluates it once per load and caches the verdict for that instance's
// whole lifetime.
type Policy func(app *types.AppDescriptor) bool

// Always returns a fixed verdict regardless of application.
func Always(v bool) Policy {
	return func(*types.AppDescriptor) bool { return v }
}

// Token represents one exclusive mount in flight. It resolves exactly once,
// when the owning application has unmounted.
type Token struct {
	done chan struct{}
	once sync.Once
}

// Done exposes completion for select loops.
func (t *Token) Done() <-chan struct{} { return t.done }

// Resolved reports whether the token has been released.
func (t *Token) Resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Token) resolve() {
	t.once.Do(func() { close(t.done) })
}

// Sequencer orders exclusive mounts. The zero value is ready to use.
type Sequencer struct {
	mu      sync.Mutex
	current *Token
}

// Wait blocks until the currently installed token resolves, or ctx ends.
// With no token installed it returns immediately.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	tok := s.current
	s.mu.Unlock()

	if tok == nil {
		return nil
	}
	select {
	case <-tok.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Claim installs a fresh token and returns it. The caller owns the token
// and must Release it after its application unmounts.
func (s *Sequencer) Claim() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := &Token{done: make(chan struct{})}
	s.current = tok
	return tok
}

// Pending reports whether an unresolved token is installed. A true result
// at Claim time means the previous owner never finished unmounting.
func (s *Sequencer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.Resolved()
}

// Installed reports whether tok is the currently installed token. A false
// result at Release time means another claim superseded this owner.
func (s *Sequencer) Installed(tok *Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tok != nil && s.current == tok
}

// Release resolves tok, waking anyone blocked on it. Releasing nil or an
// already-resolved token is a no-op. A superseded token only resolves
// itself; the currently installed token stays in place.
func (s *Sequencer) Release(tok *Token) {
	if tok == nil {
		return
	}
	tok.resolve()

	s.mu.Lock()
	if s.current == tok {
		s.current = nil
	}
	s.mu.Unlock()
}
