package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
	timeout    time.Duration
}

// Context is the state of one test or subtest.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
}

// RunOptions configure Run. All fields are optional.
type RunOptions struct {
	Filter     Filter
	TestLogger TestLogger
	// Timeout bounds the context.Context handed to each test. Zero means no limit.
	Timeout time.Duration
}

// Run runs action as the root of a test tree and returns the results of every test it started.
func Run(opts RunOptions, action func(*Context)) Results {
	testLogger := opts.TestLogger
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     opts.Filter,
		testLogger: testLogger,
		timeout:    opts.Timeout,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			if c.skipped {
				c.record()
				return
			}
			c.failed = true
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		c.record()
	}()

	action(c)
}

func (c *Context) record() {
	if len(c.id.Path) == 0 {
		return
	}
	result := TestResult{TestID: c.id, Errors: c.errors, Skipped: c.skipped}
	c.env.results.Tests = append(c.env.results.Tests, result)
	if c.failed {
		c.env.results.Failures = append(c.env.results.Failures, result)
	}
}

func (c *Context) ID() TestID {
	return c.id
}

// Run runs a subtest. Tests excluded by the filter are reported as skipped without running.
func (c *Context) Run(name string, action func(*Context)) {
	id := c.id.Plus(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// WithTimeout returns a context.Context for blocking operations in the test, bounded by the
// timeout given to Run.
func (c *Context) WithTimeout() (context.Context, context.CancelFunc) {
	if c.env.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.env.timeout)
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

// Loggers returns loggers that write into this test's debug output at every level.
func (c *Context) Loggers() ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLogger(&c.debugLogger)
	loggers.SetMinLevel(ldlog.Debug)
	return loggers
}

// reformatError indents every line after the first, since testify failure messages span
// several lines.
func reformatError(err error) error {
	return errors.New(indentContinuation(err.Error()))
}
