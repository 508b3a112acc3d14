// Package jsworker runs ServiceWorker scripts written in JavaScript. Each registration gets its
// own goja runtime bound to the worker's GlobalScope, so scripts see self, caches, clients,
// registration, fetch and the other worker globals backed by the harness.
package jsworker

import (
	"context"
	"fmt"
	"os"

	"github.com/launchdarkly/sw-test-env/swenv"
)

// Executor is a swenv.Executor for JavaScript worker scripts read from the webroot.
type Executor struct {
	// MaxTimerRuns bounds how many timer callbacks run while an event waits on a pending
	// promise. Zero means DefaultMaxTimerRuns.
	MaxTimerRuns int
}

// DefaultMaxTimerRuns is used when Executor.MaxTimerRuns is zero.
const DefaultMaxTimerRuns = 10000

func New() *Executor {
	return &Executor{}
}

// Execute reads the script, evaluates it in a fresh runtime, and ties the runtime's lifetime to
// the scope.
func (x *Executor) Execute(ctx context.Context, scope *swenv.GlobalScope, script swenv.Script) error {
	src, err := os.ReadFile(script.Path)
	if err != nil {
		return fmt.Errorf("read worker script: %w", err)
	}
	r, err := newRuntime(scope, script.Webroot, x.maxTimerRuns())
	if err != nil {
		return err
	}
	scope.OnDestroy(r.close)
	scope.SetLookup(r.lookup)
	return r.run(ctx, func() error {
		_, err := r.vm.RunScript(script.URL, string(src))
		return r.wrapError(err)
	})
}

func (x *Executor) maxTimerRuns() int {
	if x.MaxTimerRuns > 0 {
		return x.MaxTimerRuns
	}
	return DefaultMaxTimerRuns
}
