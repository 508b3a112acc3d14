package framework

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	events []string
	debug  map[string]CapturedOutput
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.events = append(r.events, "start "+id.String())
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.events = append(r.events, "error "+id.String()+": "+err.Error())
}

func (r *recordingTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	status := "passed"
	if failed {
		status = "failed"
	}
	r.events = append(r.events, status+" "+id.String())
	if r.debug == nil {
		r.debug = make(map[string]CapturedOutput)
	}
	r.debug[id.String()] = debugOutput
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.events = append(r.events, "skipped "+id.String()+" ("+reason+")")
}

func resultIDs(results []TestResult) []string {
	var ret []string
	for _, r := range results {
		ret = append(ret, r.TestID.String())
	}
	return ret
}

func TestRunRecordsPassAndFail(t *testing.T) {
	logger := &recordingTestLogger{}
	results := Run(RunOptions{TestLogger: logger}, func(c *Context) {
		c.Run("a", func(c *Context) {
			c.Run("ok", func(*Context) {})
			c.Run("bad", func(c *Context) {
				c.Errorf("went %s", "wrong")
			})
		})
	})

	assert.False(t, results.OK())
	assert.Equal(t, []string{"a/ok", "a/bad", "a"}, resultIDs(results.Tests))
	assert.Equal(t, []string{"a/bad"}, resultIDs(results.Failures))
	wantEvents := []string{
		"start a",
		"start a/ok",
		"passed a/ok",
		"start a/bad",
		"error a/bad: went wrong",
		"failed a/bad",
		"passed a",
	}
	if diff := cmp.Diff(wantEvents, logger.events); diff != "" {
		t.Errorf("logger events mismatch (-want +got):\n%s", diff)
	}
}

func TestFailNowStopsTest(t *testing.T) {
	reached := false
	results := Run(RunOptions{}, func(c *Context) {
		c.Run("x", func(c *Context) {
			require.Fail(c, "stop here")
			reached = true
		})
	})

	assert.False(t, reached)
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "stop here")
}

func TestPanicIsReportedAsFailure(t *testing.T) {
	results := Run(RunOptions{}, func(c *Context) {
		c.Run("x", func(*Context) { panic("boom") })
	})

	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
}

func TestSkipAndFilter(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("^excluded$"))
	logger := &recordingTestLogger{}

	results := Run(RunOptions{Filter: filters.AsFilter, TestLogger: logger}, func(c *Context) {
		c.Run("excluded", func(c *Context) { c.Errorf("should not run") })
		c.Run("skips", func(c *Context) { c.SkipWithReason("not today") })
	})

	assert.True(t, results.OK())
	passed, failed, skipped := results.Counts()
	assert.Equal(t, []int{0, 0, 1}, []int{passed, failed, skipped})
	assert.Contains(t, logger.events, "skipped excluded (excluded by filter parameters)")
	assert.Contains(t, logger.events, "skipped skips (not today)")
}

func TestLoggersAreCapturedPerTest(t *testing.T) {
	logger := &recordingTestLogger{}
	Run(RunOptions{TestLogger: logger}, func(c *Context) {
		c.Run("x", func(c *Context) {
			c.Loggers().Debugf("hello %d", 1)
			c.Debug("direct")
		})
	})

	output := logger.debug["x"]
	require.Len(t, output, 2)
	assert.Contains(t, output[0].Message, "hello 1")
	assert.Equal(t, "direct", output[1].Message)
}

func TestWithTimeout(t *testing.T) {
	Run(RunOptions{Timeout: time.Minute}, func(c *Context) {
		ctx, cancel := c.WithTimeout()
		defer cancel()
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})

	Run(RunOptions{}, func(c *Context) {
		ctx, cancel := c.WithTimeout()
		defer cancel()
		_, ok := ctx.Deadline()
		assert.False(t, ok)
	})
}

func TestRegexListFlag(t *testing.T) {
	var list RegexList
	assert.False(t, list.IsDefined())
	require.NoError(t, list.Set("a.c"))
	require.NoError(t, list.Set("^z"))
	assert.Equal(t, `"a.c" or "^z"`, list.String())
	assert.Equal(t, "regex", list.Type())
	assert.True(t, list.AnyMatch("xabcx"))
	assert.False(t, list.AnyMatch("yz"))
	assert.Error(t, list.Set("("))
}

func TestConsoleTestLoggerDumpsDebugOutputOnFailure(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := &ConsoleTestLogger{Out: &buf, DebugOutputOnFailure: true}
	id := TestID{Path: []string{"s", "x"}}
	output := CapturedOutput{{Time: time.Now(), Message: "captured"}}

	logger.TestStarted(id)
	logger.TestError(id, errors.New("line1\nline2"))
	logger.TestFinished(id, true, output)
	logger.TestFinished(TestID{Path: []string{"quiet"}}, false, output)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "[s/x]", lines[0])
	assert.Equal(t, "  line1", lines[1])
	assert.Equal(t, "  line2", lines[2])
	assert.Equal(t, "  FAILED: s/x", lines[3])
	assert.Contains(t, lines[4], "    DEBUG [")
	assert.Contains(t, lines[4], "] captured")
}

func TestResultsPrint(t *testing.T) {
	results := Results{
		Tests:    []TestResult{{TestID: TestID{Path: []string{"a"}}}, {TestID: TestID{Path: []string{"b"}}, Errors: []error{errors.New("bad")}}},
		Failures: []TestResult{{TestID: TestID{Path: []string{"b"}}, Errors: []error{errors.New("bad")}}},
	}
	var buf bytes.Buffer
	results.Print(&buf)
	assert.Equal(t, "Ran 2 test(s): 1 passed, 1 failed, 0 skipped\n  FAILED: b\n    bad\n", buf.String())
}
