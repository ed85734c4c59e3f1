package gateway

import (
	"context"
	"sync"
)

// Pending is the eventual result of an asynchronous guest call.
type Pending struct {
	done   chan struct{}
	once   sync.Once
	result any
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolved returns a Pending that is already complete.
func resolved(result any, err error) *Pending {
	p := newPending()
	p.resolve(result, err)
	return p
}

// resolve completes the call. Later calls are ignored.
func (p *Pending) resolve(result any, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call completes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
