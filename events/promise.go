package events

import (
	"context"
	"sync"
)

// Promise is a value that settles exactly once, either with a result or with an error. It is what
// listeners hand to WaitUntil and RespondWith to extend the lifetime of an event.
type Promise struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

// NewPromise returns a pending Promise along with the functions that settle it. Only the first call
// to either function has any effect.
func NewPromise() (p *Promise, resolve func(interface{}), reject func(error)) {
	p = &Promise{done: make(chan struct{})}
	return p, p.resolve, p.reject
}

// Resolved returns a Promise that has already settled with value.
func Resolved(value interface{}) *Promise {
	p, resolve, _ := NewPromise()
	resolve(value)
	return p
}

// Rejected returns a Promise that has already settled with err.
func Rejected(err error) *Promise {
	p, _, reject := NewPromise()
	reject(err)
	return p
}

// Async runs fn on its own goroutine and returns a Promise for its outcome.
func Async(fn func() (interface{}, error)) *Promise {
	p, resolve, reject := NewPromise()
	go func() {
		value, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(value)
	}()
	return p
}

func (p *Promise) resolve(value interface{}) {
	p.once.Do(func() {
		p.value = value
		close(p.done)
	})
}

func (p *Promise) reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done returns a channel that is closed once the Promise has settled.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the Promise has settled.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the Promise settles or ctx is done. A Promise that never settles blocks
// forever unless ctx carries a deadline.
func (p *Promise) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
