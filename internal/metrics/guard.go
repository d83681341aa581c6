package metrics

import "sync"

// guard serializes access to collector state. The collector only depends on
// this interface so the single mutex can be replaced by a finer scheme.
type guard interface {
	Lock()
	Unlock()
}

type mutexGuard struct {
	mu sync.Mutex
}

func (g *mutexGuard) Lock()   { g.mu.Lock() }
func (g *mutexGuard) Unlock() { g.mu.Unlock() }

func withGuard[T any](g guard, fn func() T) T {
	g.Lock()
	defer g.Unlock()
	return fn()
}
