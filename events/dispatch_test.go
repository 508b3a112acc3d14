package events

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchWithNoListenersDoesNothing(t *testing.T) {
	var target Target
	result, err := Dispatch(context.Background(), &target, "custom")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDispatchUnhandledErrorReturnsOriginalError(t *testing.T) {
	var target Target
	original := errors.New("foo!")

	_, err := Dispatch(context.Background(), &target, TypeError, original)

	var unhandled *UnhandledError
	require.True(t, errors.As(err, &unhandled))
	assert.Equal(t, TypeError, unhandled.Type)
	assert.True(t, errors.Is(err, original))
	assert.Equal(t, "foo!", err.Error())
}

func TestDispatchUnhandledRejectionWithoutValue(t *testing.T) {
	var target Target
	_, err := Dispatch(context.Background(), &target, TypeUnhandledRejection)
	require.Error(t, err)
	assert.Equal(t, "unhandled error of type unhandledrejection", err.Error())
}

func TestDispatchHandledErrorResolvesToError(t *testing.T) {
	var target Target
	var message string
	target.SetOn(TypeError, func(e Event) error {
		message = e.(*ErrorEvent).Message
		return nil
	})
	original := errors.New("foo!")

	result, err := Dispatch(context.Background(), &target, TypeError, original)
	require.NoError(t, err)
	assert.Equal(t, original, result)
	assert.Equal(t, "foo!", message)
}

func TestDispatchSingleListenerReturnsWaitUntilValue(t *testing.T) {
	var target Target
	target.AddEventListener(TypeInstall, func(e Event) error {
		e.WaitUntil(Resolved("done"))
		return nil
	})

	result, err := Dispatch(context.Background(), &target, TypeInstall)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestDispatchWaitsForPendingPromise(t *testing.T) {
	var target Target
	p, resolve, _ := NewPromise()
	target.AddEventListener(TypeActivate, func(e Event) error {
		e.WaitUntil(p)
		return nil
	})

	done := make(chan struct{})
	go func() {
		_, _ = Dispatch(context.Background(), &target, TypeActivate)
		close(done)
	}()

	select {
	case <-done:
		require.Fail(t, "dispatch finished before waitUntil promise settled")
	case <-time.After(50 * time.Millisecond):
	}
	resolve(nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for dispatch to finish")
	}
}

func TestDispatchStopsWaitingWhenContextIsDone(t *testing.T) {
	var target Target
	p, _, _ := NewPromise()
	target.AddEventListener(TypeInstall, func(e Event) error {
		e.WaitUntil(p)
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Dispatch(ctx, &target, TypeInstall)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDispatchMultipleListenersIncludingOnSlot(t *testing.T) {
	var target Target
	target.AddEventListener("custom", func(e Event) error {
		e.WaitUntil(Resolved(1))
		return nil
	})
	target.SetOn("custom", func(e Event) error {
		e.WaitUntil(Async(func() (interface{}, error) { return 2, nil }))
		return nil
	})

	result, err := Dispatch(context.Background(), &target, "custom")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2}, result)
}

func TestDispatchMultipleListenersReportsAllFailures(t *testing.T) {
	var target Target
	errA, errB := errors.New("a"), errors.New("b")
	target.AddEventListener("custom", func(e Event) error { return errA })
	target.AddEventListener("custom", func(e Event) error {
		e.WaitUntil(Rejected(errB))
		return nil
	})
	var invoked bool
	target.AddEventListener("custom", func(e Event) error {
		invoked = true
		return nil
	})

	_, err := Dispatch(context.Background(), &target, "custom")
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errB))
	assert.True(t, invoked, "every listener should be invoked even if an earlier one failed")
}

func TestDispatchFetchResolvesToRespondWithValue(t *testing.T) {
	var target Target
	res := &http.Response{StatusCode: 200}
	var seen *http.Request
	target.AddEventListener(TypeFetch, func(e Event) error {
		fe := e.(*FetchEvent)
		seen = fe.Request
		fe.RespondWith(Resolved(res))
		return nil
	})
	req, _ := http.NewRequest("GET", "http://localhost:3333/index.js", nil)

	result, err := Dispatch(context.Background(), &target, TypeFetch, req, FetchInit{ClientID: "1"})
	require.NoError(t, err)
	assert.Same(t, res, result)
	assert.Same(t, req, seen)
}

func TestDispatchMessageCarriesInit(t *testing.T) {
	var target Target
	var got *MessageEvent
	target.SetOn(TypeMessage, func(e Event) error {
		got = e.(*MessageEvent)
		return nil
	})

	_, err := Dispatch(context.Background(), &target, TypeMessage, "hi", MessageInit{Origin: "http://localhost:3333"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Data)
	assert.Equal(t, "http://localhost:3333", got.Origin)
}

func TestRemovedListenerIsNotInvoked(t *testing.T) {
	var target Target
	calls := 0
	remove := target.AddEventListener("custom", func(e Event) error {
		calls++
		return nil
	})
	remove()

	_, err := Dispatch(context.Background(), &target, "custom")
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Len(t, target.Listeners("custom"), 0)
}

func TestPushMessageData(t *testing.T) {
	e := NewEvent(TypePush, map[string]interface{}{"a": 1}).(*PushEvent)
	assert.Equal(t, `{"a":1}`, e.Data.Text())

	empty := NewEvent(TypePush).(*PushEvent)
	assert.Equal(t, "{}", empty.Data.Text())
}

type ctxKey struct{}

func TestEventCarriesDispatchContext(t *testing.T) {
	var target Target
	var got interface{}
	target.SetOn("custom", func(e Event) error {
		got = e.Context().Value(ctxKey{})
		return nil
	})
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")

	_, err := Dispatch(ctx, &target, "custom")
	require.NoError(t, err)
	assert.Equal(t, "marker", got)
	assert.NotNil(t, NewExtendableEvent("x").Context())
}
