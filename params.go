package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/launchdarkly/sw-test-env/framework"
	"github.com/launchdarkly/sw-test-env/swenv"
	"github.com/spf13/pflag"
)

const defaultTimeout = time.Second * 10

type commandParams struct {
	suitePath string
	origin    string
	webroot   string
	filters   framework.RegexFilters
	timeout   time.Duration
	debug     bool
	debugAll  bool

	// set only when given on the command line, so that they override the suite file
	originFlag  bool
	webrootFlag bool
}

// Read parses args over the defaults in cfg.
func (c *commandParams) Read(args []string, cfg swenv.Config) bool {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.StringVar(&c.suitePath, "suite", "", "suite file to run (JSON with comments)")
	fs.StringVar(&c.origin, "origin", cfg.Origin, "origin of the connected pages")
	fs.StringVar(&c.webroot, "webroot", cfg.Webroot, "directory that worker scripts and assets are served from")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select scenarios to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select scenarios not to run")
	fs.DurationVar(&c.timeout, "timeout", defaultTimeout, "time limit for each scenario step")
	fs.BoolVar(&c.debug, "debug", cfg.Debug, "show debug output for failed scenarios")
	fs.BoolVar(&c.debugAll, "debug-all", false, "show debug output for all scenarios")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	if c.suitePath == "" {
		fmt.Fprintln(os.Stderr, "--suite is required")
		fs.Usage()
		return false
	}
	c.originFlag = fs.Changed("origin")
	c.webrootFlag = fs.Changed("webroot")
	return true
}

// rerunCommand returns a command line that runs only the failed scenarios again.
func (c *commandParams) rerunCommand(program string, results framework.Results) string {
	var b commandBuilder
	b.add(program, "--suite", c.suitePath)
	if c.originFlag {
		b.add("--origin", c.origin)
	}
	if c.webrootFlag {
		b.add("--webroot", c.webroot)
	}
	for _, f := range results.Failures {
		b.add("--run", "^"+regexp.QuoteMeta(f.TestID.String())+"$")
	}
	if c.debug || c.debugAll {
		b.add("--debug")
	}
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
