package events

import "sync"

// Listener handles a dispatched event. A returned error is treated like an exception thrown by
// the listener: it fails the dispatch.
type Listener func(e Event) error

// EventTarget is anything events can be dispatched to.
type EventTarget interface {
	// Listeners returns the listeners for typ in invocation order.
	Listeners(typ string) []Listener
}

type listenerEntry struct {
	fn Listener
}

// Target keeps, per event type, an ordered list of listeners plus a single "on<type>" slot. The
// zero value is ready to use.
type Target struct {
	listeners map[string][]*listenerEntry
	on        map[string]Listener
	lock      sync.Mutex
}

// AddEventListener appends listener for typ. The returned function removes it again.
func (t *Target) AddEventListener(typ string, listener Listener) (remove func()) {
	entry := &listenerEntry{fn: listener}
	t.lock.Lock()
	if t.listeners == nil {
		t.listeners = make(map[string][]*listenerEntry)
	}
	t.listeners[typ] = append(t.listeners[typ], entry)
	t.lock.Unlock()

	return func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		entries := t.listeners[typ]
		for i, e := range entries {
			if e == entry { // funcs aren't comparable, so compare the wrapper pointers
				t.listeners[typ] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// SetOn sets the on<typ> slot. Passing nil clears it.
func (t *Target) SetOn(typ string, listener Listener) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if listener == nil {
		delete(t.on, typ)
		return
	}
	if t.on == nil {
		t.on = make(map[string]Listener)
	}
	t.on[typ] = listener
}

// On returns the listener in the on<typ> slot, or nil.
func (t *Target) On(typ string) Listener {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.on[typ]
}

// RemoveAllEventListeners drops every listener and clears every on<type> slot.
func (t *Target) RemoveAllEventListeners() {
	t.lock.Lock()
	t.listeners = nil
	t.on = nil
	t.lock.Unlock()
}

// Listeners returns the registered listeners for typ followed by the on<typ> slot, if set.
func (t *Target) Listeners(typ string) []Listener {
	t.lock.Lock()
	defer t.lock.Unlock()
	ret := make([]Listener, 0, len(t.listeners[typ])+1)
	for _, e := range t.listeners[typ] {
		ret = append(ret, e.fn)
	}
	if on := t.on[typ]; on != nil {
		ret = append(ret, on)
	}
	return ret
}
