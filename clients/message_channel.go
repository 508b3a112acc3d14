package clients

import (
	"context"
	"sync"

	"github.com/launchdarkly/sw-test-env/events"
)

// MessagePort is one end of a MessageChannel. Messages posted to a port are dispatched as
// message events on the other end.
type MessagePort struct {
	events.Target
	other *MessagePort
	lock  sync.Mutex
}

// MessageChannel is a pair of linked ports.
type MessageChannel struct {
	Port1 *MessagePort
	Port2 *MessagePort
}

func NewMessageChannel() *MessageChannel {
	port1, port2 := &MessagePort{}, &MessagePort{}
	port1.other, port2.other = port2, port1
	return &MessageChannel{Port1: port1, Port2: port2}
}

// PostMessage dispatches message on the other port and waits for its listeners. Ports found in
// transfer are passed along as the event's Ports.
func (p *MessagePort) PostMessage(message interface{}, transfer ...interface{}) error {
	return p.PostMessageContext(context.Background(), message, transfer...)
}

// PostMessageContext is PostMessage with a context bounding the wait for the listeners.
func (p *MessagePort) PostMessageContext(ctx context.Context, message interface{}, transfer ...interface{}) error {
	p.lock.Lock()
	other := p.other
	p.lock.Unlock()
	if other == nil {
		return nil
	}
	var ports []events.Poster
	for _, t := range transfer {
		if port, ok := t.(*MessagePort); ok {
			ports = append(ports, port)
		}
	}
	_, err := events.Dispatch(ctx, other, events.TypeMessage, message, events.MessageInit{Ports: ports})
	return err
}

// Start is a no-op; messages are never queued.
func (p *MessagePort) Start() {}

// Close disconnects both ends of the channel.
func (p *MessagePort) Close() {
	p.lock.Lock()
	other := p.other
	p.other = nil
	p.lock.Unlock()
	if other != nil {
		other.lock.Lock()
		other.other = nil
		other.lock.Unlock()
	}
}
