// Package framework contains the low-level test runner used by the scenario suite.
//
// The general model is:
//
// 1. A Context is similar to Go's *testing.T, but works outside of the Go test runner. Pieces
// of test logic are associated with a TestID and accumulate success or failure results.
//
// 2. Each Context captures its own debug output, including anything written through the
// ldlog.Loggers it hands out, so the output of a failing test can be shown on its own.
//
// 3. A TestLogger receives progress notifications as tests start, fail and finish.
//
// The code that knows what is being tested provides a domain-specific API on top of Context.
package framework
