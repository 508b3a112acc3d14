// Package suite runs the scenarios of a suite file against fresh harnesses.
//
// Each scenario becomes a top-level test in the framework package. A scenario connects one page
// to its own swenv.Harness, serves its routes from the page's origin, then performs its steps in
// order, checking each step's expectations before moving on. A failed expectation ends the
// scenario.
package suite
