package swenv

import (
	"context"
	"sync"
)

// State is a worker lifecycle state.
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Worker is the page-side handle of a registered script.
type Worker struct {
	ScriptURL string
	state     State
	post      func(ctx context.Context, message interface{}, transfer []interface{}) error
	lock      sync.Mutex
}

func newWorker(scriptURL string, post func(ctx context.Context, message interface{}, transfer []interface{}) error) *Worker {
	return &Worker{ScriptURL: scriptURL, state: StateInstalling, post: post}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.lock.Lock()
	w.state = s
	w.lock.Unlock()
}

// PostMessage sends message to the worker scope as a message event and waits for its listeners.
// The worker must be activated.
func (w *Worker) PostMessage(message interface{}, transfer ...interface{}) error {
	return w.PostMessageContext(context.Background(), message, transfer...)
}

// PostMessageContext is PostMessage with a context that is passed on to the message event.
func (w *Worker) PostMessageContext(ctx context.Context, message interface{}, transfer ...interface{}) error {
	return w.post(ctx, message, transfer)
}
