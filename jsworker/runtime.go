package jsworker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/launchdarkly/sw-test-env/events"
	"github.com/launchdarkly/sw-test-env/swenv"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

var errClosed = errors.New("worker runtime closed")

// runtime is one goja VM plus the state the worker globals need. Everything except close runs
// with lock held. Bindings that call out to Go code which may dispatch back into the runtime
// release the lock for the duration of the call; see callout.
type runtime struct {
	vm       *goja.Runtime
	scope    *swenv.GlobalScope
	origin   *url.URL
	webroot  string
	loggers  ldlog.Loggers
	ctx      context.Context
	maxRuns  int
	now      time.Duration
	timerID  int64
	timers   []*timer
	pending  []*pendingPromise
	wrappers map[interface{}]*goja.Object
	closed   atomic.Bool
	lock     sync.Mutex
}

// timer runs on virtual time: the clock jumps to the next due timer whenever an event is
// waiting for a promise.
type timer struct {
	id   int64
	due  time.Duration
	fn   goja.Callable
	args []goja.Value
}

// pendingPromise links a JS promise handed to waitUntil or respondWith to its Go counterpart.
type pendingPromise struct {
	promise *goja.Promise
	resolve func(interface{})
	reject  func(error)
}

func newRuntime(scope *swenv.GlobalScope, webroot string, maxRuns int) (*runtime, error) {
	o, err := url.Parse(scope.Origin + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid scope origin %q: %w", scope.Origin, err)
	}
	r := &runtime{
		vm:       goja.New(),
		scope:    scope,
		origin:   o,
		webroot:  webroot,
		loggers:  scope.Loggers(),
		ctx:      context.Background(),
		maxRuns:  maxRuns,
		wrappers: make(map[interface{}]*goja.Object),
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := r.bindGlobals(); err != nil {
		return nil, fmt.Errorf("bind worker globals: %w", err)
	}
	return r, nil
}

// run executes fn against the VM, then advances timers until the promises fn handed over
// settle or no timers remain.
func (r *runtime) run(ctx context.Context, fn func() error) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() { r.vm.Interrupt(ctx.Err()) })
		defer func() {
			stop()
			r.vm.ClearInterrupt()
		}()
	}
	if r.closed.Load() {
		return errClosed
	}
	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	err := fn()
	if err == nil {
		r.drain()
	}
	r.settlePending()
	return err
}

// callout runs fn with the lock released. The script is suspended inside a binding meanwhile, so
// a run started by fn, from this goroutine or another, executes as a nested call and the
// suspended binding resumes only after it returns. A nested run clears interrupts when it ends,
// so a cancellation of the suspended run is raised again on resuming.
func (r *runtime) callout(fn func() error) error {
	r.lock.Unlock()
	defer func() {
		r.lock.Lock()
		if cause := r.ctx.Err(); cause != nil {
			r.vm.Interrupt(cause)
		}
	}()
	return fn()
}

func (r *runtime) close() {
	r.closed.Store(true)
}

// lookup exposes the script's globals through GlobalScope.Get.
func (r *runtime) lookup(name string) (interface{}, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	v := r.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return r.export(v), true
}

func (r *runtime) drain() {
	for i := 0; i < r.maxRuns; i++ {
		r.settlePending()
		if len(r.pending) == 0 || len(r.timers) == 0 {
			return
		}
		t := r.nextTimer()
		r.now = t.due
		if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return
			}
			r.loggers.Errorf("Uncaught error in timer callback: %s", r.wrapError(err))
		}
	}
	if len(r.pending) > 0 && len(r.timers) > 0 {
		r.loggers.Warnf("Gave up running timers after %d callbacks", r.maxRuns)
	}
}

func (r *runtime) nextTimer() *timer {
	sort.SliceStable(r.timers, func(i, j int) bool {
		if r.timers[i].due != r.timers[j].due {
			return r.timers[i].due < r.timers[j].due
		}
		return r.timers[i].id < r.timers[j].id
	})
	t := r.timers[0]
	r.timers = r.timers[1:]
	return t
}

func (r *runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout requires a function"))
	}
	delay := call.Argument(1).ToInteger()
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	r.timerID++
	r.timers = append(r.timers, &timer{
		id:   r.timerID,
		due:  r.now + time.Duration(delay)*time.Millisecond,
		fn:   fn,
		args: args,
	})
	return r.vm.ToValue(r.timerID)
}

func (r *runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	for i, t := range r.timers {
		if t.id == id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
	return goja.Undefined()
}

// toPromise converts a value given to waitUntil or respondWith. Promises still pending are
// settled at the end of the current run, or by a later one.
func (r *runtime) toPromise(v goja.Value) *events.Promise {
	if v == nil || goja.IsUndefined(v) {
		return events.Resolved(nil)
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return events.Resolved(r.export(v))
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return events.Resolved(r.export(p.Result()))
	case goja.PromiseStateRejected:
		return events.Rejected(r.toError(p.Result()))
	}
	ret, resolve, reject := events.NewPromise()
	r.pending = append(r.pending, &pendingPromise{promise: p, resolve: resolve, reject: reject})
	return ret
}

func (r *runtime) settlePending() {
	kept := r.pending[:0]
	for _, p := range r.pending {
		switch p.promise.State() {
		case goja.PromiseStateFulfilled:
			p.resolve(r.export(p.promise.Result()))
		case goja.PromiseStateRejected:
			p.reject(r.toError(p.promise.Result()))
		default:
			kept = append(kept, p)
		}
	}
	r.pending = kept
}

// promise returns a JS promise already settled with v or err.
func (r *runtime) promise(v goja.Value, err error) goja.Value {
	p, resolve, reject := r.vm.NewPromise()
	switch {
	case err != nil:
		reject(r.vm.NewGoError(err))
	case v == nil:
		resolve(goja.Undefined())
	default:
		resolve(v)
	}
	return r.vm.ToValue(p)
}

// wrapError turns an error returned by the VM into a plain Go error. Errors thrown from Go
// bindings keep their identity.
func (r *runtime) wrapError(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return err
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return r.toError(ex.Value())
	}
	return err
}

func (r *runtime) toError(v goja.Value) error {
	if obj, ok := v.(*goja.Object); ok {
		if inner := obj.Get("value"); inner != nil {
			if err, ok := inner.Export().(error); ok {
				return err
			}
		}
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return errors.New(msg.String())
		}
	}
	if v == nil || goja.IsUndefined(v) {
		return errors.New("promise rejected without a reason")
	}
	return errors.New(v.String())
}

// throw raises err as a JS exception from inside a Go binding.
func (r *runtime) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(r.vm.NewGoError(err))
}
