package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/sw-test-env/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIDsAreUniqueAcrossCollectionsSharingASource(t *testing.T) {
	ids := Sequence()
	a, b := New(ids), New(ids)

	c1 := a.OpenWindow("http://localhost:3333/")
	c2 := b.OpenWindow("http://localhost:3333/")
	c3 := a.Connect("http://localhost:3333/", nil)

	assert.Equal(t, "1", c1.ID)
	assert.Equal(t, "2", c2.ID)
	assert.Equal(t, "3", c3.ID)
}

func TestGetAndMatchAll(t *testing.T) {
	c := New(nil)
	w1 := c.OpenWindow("http://localhost:3333/a")
	w2 := c.Connect("http://localhost:3333/b", nil)

	assert.Same(t, w2, c.Get(w2.ID))
	assert.Nil(t, c.Get("nope"))
	assert.Equal(t, []*Client{w1, w2}, c.MatchAll(MatchOptions{}))
	assert.Equal(t, []*Client{w1, w2}, c.MatchAll(MatchOptions{Type: TypeWindow}))
	assert.Empty(t, c.MatchAll(MatchOptions{Type: TypeWorker}))
	assert.NoError(t, c.Claim())
}

func TestConnectedClientRoutesMessages(t *testing.T) {
	c := New(nil)
	var got []interface{}
	client := c.Connect("http://localhost:3333/", func(ctx context.Context, message interface{}, transfer []interface{}) error {
		got = append(got, message, len(transfer))
		return nil
	})

	require.NoError(t, client.PostMessage("hi", "x"))
	assert.Equal(t, []interface{}{"hi", 1}, got)

	sendErr := errors.New("failed")
	failing := c.Connect("http://localhost:3333/", func(context.Context, interface{}, []interface{}) error { return sendErr })
	assert.Equal(t, sendErr, failing.PostMessage("hi"))
}

func TestOpenWindowDiscardsMessages(t *testing.T) {
	client := New(nil).OpenWindow("http://localhost:3333/")
	assert.NoError(t, client.PostMessage("hi"))
}

func TestFocusAndNavigate(t *testing.T) {
	client := New(nil).OpenWindow("http://localhost:3333/")
	assert.False(t, client.Focused())
	assert.Equal(t, "hidden", client.VisibilityState())

	assert.Same(t, client, client.Focus())
	assert.True(t, client.Focused())
	assert.Equal(t, "visible", client.VisibilityState())

	client.Navigate("http://localhost:3333/other")
	assert.Equal(t, "http://localhost:3333/other", client.URL())
}

func TestRemoveAndClear(t *testing.T) {
	c := New(nil)
	a := c.OpenWindow("a")
	c.OpenWindow("b")

	assert.True(t, c.Remove(a.ID))
	assert.False(t, c.Remove(a.ID))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMessageChannelDeliversToOtherPort(t *testing.T) {
	ch := NewMessageChannel()
	var onPort1, onPort2 []interface{}
	ch.Port1.SetOn(events.TypeMessage, func(e events.Event) error {
		onPort1 = append(onPort1, e.(*events.MessageEvent).Data)
		return nil
	})
	ch.Port2.AddEventListener(events.TypeMessage, func(e events.Event) error {
		onPort2 = append(onPort2, e.(*events.MessageEvent).Data)
		return nil
	})

	require.NoError(t, ch.Port1.PostMessage("to 2"))
	require.NoError(t, ch.Port2.PostMessage("to 1"))

	assert.Equal(t, []interface{}{"to 2"}, onPort2)
	assert.Equal(t, []interface{}{"to 1"}, onPort1)
}

func TestMessagePortTransfersPorts(t *testing.T) {
	ch, transferred := NewMessageChannel(), NewMessageChannel()
	var ports []events.Poster
	ch.Port2.SetOn(events.TypeMessage, func(e events.Event) error {
		ports = e.(*events.MessageEvent).Ports
		return nil
	})

	require.NoError(t, ch.Port1.PostMessage("port", transferred.Port2, "not a port"))
	require.Len(t, ports, 1)
	assert.Same(t, transferred.Port2, ports[0])
}

func TestMessagePortListenerErrorIsReturned(t *testing.T) {
	ch := NewMessageChannel()
	listenerErr := errors.New("boom")
	ch.Port2.SetOn(events.TypeMessage, func(events.Event) error { return listenerErr })

	assert.Equal(t, listenerErr, ch.Port1.PostMessage("x"))
}

func TestClosedPortDeliversNothing(t *testing.T) {
	ch := NewMessageChannel()
	calls := 0
	ch.Port2.SetOn(events.TypeMessage, func(events.Event) error {
		calls++
		return nil
	})

	ch.Port2.Close()

	require.NoError(t, ch.Port1.PostMessage("x"))
	assert.Equal(t, 0, calls)
}
