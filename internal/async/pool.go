package async

import (
	"context"
	"runtime"
)

// Pool bounds how many CPU-heavy tasks run at once. Callers block in Do
// until a slot frees up or ctx ends.
type Pool struct {
	slots chan struct{}
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, workers)}
}

// Size reports the number of concurrent slots.
func (p *Pool) Size() int { return cap(p.slots) }

// Do runs fn in the caller's goroutine once a slot is acquired. fn is not
// interrupted if ctx is canceled after it starts.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}
