package swenv

import (
	"sync"

	"github.com/launchdarkly/sw-test-env/events"
)

// Registration holds the worker slots for one scope. At most one slot refers to the worker at
// any time.
type Registration struct {
	events.Target
	Scope             string
	Index             *ContentIndex
	NavigationPreload *NavigationPreloadManager
	PushManager       *PushManager

	installing *Worker
	waiting    *Worker
	activating *Worker
	active     *Worker
	unregister func() bool
	lock       sync.Mutex
}

func newRegistration(scope string, unregister func() bool) *Registration {
	return &Registration{
		Scope:             scope,
		Index:             newContentIndex(),
		NavigationPreload: &NavigationPreloadManager{},
		PushManager:       newPushManager(),
		unregister:        unregister,
	}
}

// Installing returns the worker being installed, or nil.
func (r *Registration) Installing() *Worker {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.installing
}

// Waiting returns the installed worker waiting to activate, or nil.
func (r *Registration) Waiting() *Worker {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.waiting
}

// Activating returns the worker being activated, or nil.
func (r *Registration) Activating() *Worker {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.activating
}

// Active returns the activated worker, or nil.
func (r *Registration) Active() *Worker {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.active
}

// Unregister tears down the registration, its worker and scope, and detaches every container.
// It returns true the first time and false afterwards.
func (r *Registration) Unregister() bool {
	return r.unregister()
}

// Update re-fetches the worker script. Scripts never change during a run, so it does nothing.
func (r *Registration) Update() error { return nil }

// moveTo empties every slot and puts w in the one named by state.
func (r *Registration) moveTo(state State, w *Worker) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.installing, r.waiting, r.activating, r.active = nil, nil, nil, nil
	switch state {
	case StateInstalling:
		r.installing = w
	case StateInstalled:
		r.waiting = w
	case StateActivating:
		r.activating = w
	case StateActivated:
		r.active = w
	}
}

func (r *Registration) destroy() {
	r.moveTo(StateRedundant, nil)
	r.Index.clear()
	r.PushManager.destroy()
	r.RemoveAllEventListeners()
}
