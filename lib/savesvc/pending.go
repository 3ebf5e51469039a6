package savesvc

import (
	"context"
)

// Pending is the handle of an asynchronous operation. It completes exactly once.
type Pending struct {
	done chan struct{}
	code RetCode
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// completed returns an already finished handle
func completed(code RetCode) *Pending {
	p := newPending()
	p.complete(code)
	return p
}

func (p *Pending) complete(code RetCode) {
	p.code = code
	close(p.done)
}

// Done returns a channel that is closed when the operation finished
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Code returns the result of the operation, it must only be called after Done was closed
func (p *Pending) Code() RetCode {
	return p.code
}

// Await blocks until the operation finished or the context is done.
// If the context ends first, the context error is returned (the operation keeps running).
func (p *Pending) Await(ctx context.Context) (RetCode, error) {
	select {
	case <-p.done:
		return p.code, nil
	case <-ctx.Done():
		return RetCOffline, ctx.Err()
	}
}
