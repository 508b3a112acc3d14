package main

import (
	"fmt"
	"os"

	"github.com/launchdarkly/sw-test-env/framework"
	"github.com/launchdarkly/sw-test-env/suite"
	"github.com/launchdarkly/sw-test-env/suitedef"
	"github.com/launchdarkly/sw-test-env/swenv"
)

func main() {
	cfg, err := swenv.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %s\n", err)
		os.Exit(1)
	}

	var params commandParams
	if !params.Read(os.Args, cfg) {
		os.Exit(1)
	}

	def, err := suitedef.Load(params.suitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suite error: %s\n", err)
		os.Exit(1)
	}
	if params.originFlag {
		def.Origin = params.origin
	}
	if params.webrootFlag {
		def.Webroot = params.webroot
	}

	fmt.Println()
	params.filters.Describe(os.Stdout)

	if def.Name != "" {
		fmt.Printf("Running test suite %q\n", def.Name)
	} else {
		fmt.Println("Running test suite")
	}

	testLogger := &framework.ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	results := suite.RunSuite(
		def,
		suite.Options{Origin: params.origin, Webroot: params.webroot},
		framework.RunOptions{Filter: params.filters.AsFilter, TestLogger: testLogger, Timeout: params.timeout},
	)

	fmt.Println()
	results.Print(os.Stdout)
	if !results.OK() {
		fmt.Println()
		fmt.Println("To run the failed scenarios again:")
		fmt.Printf("  %s\n", params.rerunCommand(os.Args[0], results))
		os.Exit(1)
	}
}
