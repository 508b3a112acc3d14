package suite

import (
	"net/http"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/launchdarkly/sw-test-env/framework"
	"github.com/launchdarkly/sw-test-env/jsworker"
	"github.com/launchdarkly/sw-test-env/suitedef"
	"github.com/launchdarkly/sw-test-env/swenv"
)

// Options supply the defaults for values a suite file does not set.
type Options struct {
	Origin  string
	Webroot string
	// Executor runs worker scripts. Defaults to a jsworker.Executor.
	Executor swenv.Executor
}

// RunSuite runs every scenario of def as a top-level test.
func RunSuite(def suitedef.Suite, opts Options, runOpts framework.RunOptions) framework.Results {
	origin := firstNonEmpty(def.Origin, opts.Origin, swenv.DefaultOrigin)
	webroot := firstNonEmpty(def.Webroot, opts.Webroot, ".")
	executor := opts.Executor
	if executor == nil {
		executor = jsworker.New()
	}

	return framework.Run(runOpts, func(c *framework.Context) {
		for _, sc := range def.Scenarios {
			sc := sc
			c.Run(sc.Name, func(c *framework.Context) {
				t := newScenario(c, executor)
				defer t.close()
				t.run(sc, origin, webroot)
			})
		}
	})
}

func routeHandler(r suitedef.Route) http.Handler {
	status := http.StatusOK
	if r.Status.IsDefined() {
		status = r.Status.IntValue()
	}
	headers := make(http.Header)
	for name, value := range r.Headers {
		headers.Set(name, value)
	}
	return httphelpers.HandlerWithResponse(status, headers, []byte(r.Body))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
