package suite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/launchdarkly/sw-test-env/events"
	"github.com/launchdarkly/sw-test-env/framework"
	"github.com/launchdarkly/sw-test-env/suitedef"
	"github.com/launchdarkly/sw-test-env/swenv"
	"github.com/stretchr/testify/require"
)

var errNotControlled = errors.New("page is not controlled by a ServiceWorker")

// T is the state of one running scenario.
//
// It implements the parts of testing.T that the assert and require packages use, so a *T can be
// passed to them directly. Failures are reported through the framework.Context of the scenario.
type T struct {
	context   *framework.Context
	executor  swenv.Executor
	harness   *swenv.Harness
	container *swenv.Container
	worker    *swenv.Worker
	messages  []interface{}
	lock      sync.Mutex
}

func newScenario(c *framework.Context, executor swenv.Executor) *T {
	return &T{context: c, executor: executor}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by the require package to end the scenario.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Debug adds a line to the scenario's debug output.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

func (t *T) close() {
	if t.harness != nil {
		t.harness.Destroy()
	}
}

func (t *T) run(sc suitedef.Scenario, origin, webroot string) {
	base, err := url.Parse(origin)
	require.NoError(t, err, "invalid origin")
	pageURL, err := base.Parse(sc.PagePath())
	require.NoError(t, err, "invalid page")

	t.harness = swenv.NewHarness(swenv.Options{Loggers: t.context.Loggers(), Executor: t.executor})
	t.container, err = t.harness.Connect(pageURL.String(), webroot)
	require.NoError(t, err)
	t.container.AddEventListener(events.TypeMessage, t.receive)
	for _, r := range sc.Routes {
		t.container.Server().Handle(r.Path, routeHandler(r))
	}
	t.Debug("connected %s with webroot %s", pageURL, webroot)

	for i, step := range sc.Steps {
		t.runStep(sc, i, step)
	}
}

func (t *T) runStep(sc suitedef.Scenario, index int, step suitedef.Step) {
	where := fmt.Sprintf("step %d (%s)", index, step.Action)
	t.Debug("%s", where)

	ctx, cancel := t.context.WithTimeout()
	defer cancel()
	t.takeMessages()
	result, err := t.perform(ctx, sc, step)

	if step.Expect.Error != "" {
		require.Error(t, err, "%s: expected an error", where)
		require.Contains(t, err.Error(), step.Expect.Error, where)
	} else {
		require.NoError(t, err, where)
	}
	t.check(where, result, step.Expect)
}

func (t *T) perform(ctx context.Context, sc suitedef.Scenario, step suitedef.Step) (interface{}, error) {
	switch step.Action {
	case suitedef.ActionRegister:
		reg, err := t.container.Register(ctx, step.ScriptURL(sc), swenv.RegisterOptions{Scope: sc.Scope})
		if err != nil {
			return nil, err
		}
		t.track(reg)
		return nil, nil
	case suitedef.ActionReady:
		reg, err := t.container.Ready(ctx)
		if err != nil {
			return nil, err
		}
		t.track(reg)
		return nil, nil
	case suitedef.ActionInstall, suitedef.ActionActivate:
		return t.container.Trigger(ctx, step.Action)
	case suitedef.ActionFetch:
		return t.container.Trigger(ctx, events.TypeFetch, step.Request)
	case suitedef.ActionMessage:
		return t.container.Trigger(ctx, events.TypeMessage, step.Data.AsArbitraryValue())
	case suitedef.ActionPush:
		return t.container.Trigger(ctx, events.TypePush, step.Data.AsArbitraryValue())
	case suitedef.ActionPost:
		w := t.container.Controller()
		if w == nil {
			return nil, errNotControlled
		}
		return nil, w.PostMessageContext(ctx, step.Data.AsArbitraryValue())
	case suitedef.ActionTrigger:
		var args []interface{}
		if !step.Data.IsNull() {
			args = append(args, step.Data.AsArbitraryValue())
		}
		return t.container.Trigger(ctx, step.Event, args...)
	case suitedef.ActionUnregister:
		reg := t.container.GetRegistration()
		if reg == nil {
			return nil, swenv.ErrNotRegistered
		}
		return reg.Unregister(), nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

// track remembers the newest worker of reg, so that its state can still be checked after it
// becomes redundant.
func (t *T) track(reg *swenv.Registration) {
	for _, w := range []*swenv.Worker{reg.Installing(), reg.Waiting(), reg.Activating(), reg.Active()} {
		if w != nil {
			t.worker = w
			return
		}
	}
}

func (t *T) receive(e events.Event) error {
	if m, ok := e.(*events.MessageEvent); ok {
		t.lock.Lock()
		t.messages = append(t.messages, m.Data)
		t.lock.Unlock()
		t.Debug("page received message: %v", m.Data)
	}
	return nil
}

func (t *T) takeMessages() []interface{} {
	t.lock.Lock()
	defer t.lock.Unlock()
	ret := t.messages
	t.messages = nil
	return ret
}
