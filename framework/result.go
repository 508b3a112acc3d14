package framework

import (
	"fmt"
	"io"
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Counts returns how many tests ran to completion, failed and were skipped.
func (r Results) Counts() (passed, failed, skipped int) {
	for _, t := range r.Tests {
		if t.Skipped {
			skipped++
		}
	}
	failed = len(r.Failures)
	passed = len(r.Tests) - failed - skipped
	return
}

// Print writes a summary of the results, listing every failure.
func (r Results) Print(w io.Writer) {
	passed, failed, skipped := r.Counts()
	fmt.Fprintf(w, "Ran %d test(s): %d passed, %d failed, %d skipped\n", len(r.Tests), passed, failed, skipped)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  FAILED: %s\n", f.TestID)
		for _, err := range f.Errors {
			fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(err.Error(), "\n", "\n    "))
		}
	}
}

type TestID struct {
	Path []string
}

// Plus returns the ID of a subtest called name.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	return TestID{Path: append(append(path, t.Path...), name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
