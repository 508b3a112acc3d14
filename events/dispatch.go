package events

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"
)

// UnhandledError is returned when an error or unhandledrejection event is dispatched to a target
// with no listeners for it. It unwraps to the value that was dispatched.
type UnhandledError struct {
	Type string
	Err  error
}

func (e *UnhandledError) Error() string { return e.Err.Error() }

func (e *UnhandledError) Unwrap() error { return e.Err }

// Dispatch delivers an event of type typ to every listener of target and waits until the event is
// done, meaning every promise passed to WaitUntil (or RespondWith) has settled.
//
// Each listener receives its own event built by NewEvent from args. With a single listener the
// result is that event's value; with several, listeners are invoked in order, their events are
// then awaited concurrently, and the result is a []interface{} in listener order. Every failure is
// reported.
func Dispatch(ctx context.Context, target EventTarget, typ string, args ...interface{}) (interface{}, error) {
	listeners := target.Listeners(typ)

	if len(listeners) == 0 {
		if typ == TypeError || typ == TypeUnhandledRejection {
			err := fmt.Errorf("unhandled error of type %s", typ)
			if len(args) > 0 && args[0] != nil {
				err = asError(args[0])
			}
			return nil, &UnhandledError{Type: typ, Err: err}
		}
		return nil, nil
	}

	if len(listeners) == 1 {
		e := NewEvent(typ, args...)
		e.setContext(ctx)
		if err := listeners[0](e); err != nil {
			return nil, err
		}
		return e.settle(ctx)
	}

	type invocation struct {
		event Event
		err   error
	}
	invocations := make([]invocation, len(listeners))
	for i, listener := range listeners {
		e := NewEvent(typ, args...)
		e.setContext(ctx)
		invocations[i] = invocation{event: e, err: listener(e)}
	}

	results, err := iter.MapErr(invocations, func(inv *invocation) (interface{}, error) {
		if inv.err != nil {
			return nil, inv.err
		}
		return inv.event.settle(ctx)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
