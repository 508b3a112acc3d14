package main

import (
	"errors"
	"testing"

	"github.com/launchdarkly/sw-test-env/framework"
	"github.com/launchdarkly/sw-test-env/swenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParams(t *testing.T) {
	cfg := swenv.Config{Origin: "http://localhost:3333/", Webroot: "www", Debug: true}

	var p commandParams
	require.True(t, p.Read([]string{"sw-test-env", "--suite", "s.jsonc", "--run", "a", "--run", "b", "--origin", "http://example.com/"}, cfg))
	assert.Equal(t, "s.jsonc", p.suitePath)
	assert.Equal(t, "http://example.com/", p.origin)
	assert.True(t, p.originFlag)
	assert.Equal(t, "www", p.webroot)
	assert.False(t, p.webrootFlag)
	assert.True(t, p.debug)
	assert.Equal(t, defaultTimeout, p.timeout)
	assert.Equal(t, `"a" or "b"`, p.filters.MustMatch.String())

	var missing commandParams
	assert.False(t, missing.Read([]string{"sw-test-env"}, cfg))
}

func TestRerunCommand(t *testing.T) {
	p := commandParams{suitePath: "my suite.jsonc", webroot: "www", webrootFlag: true}
	results := framework.Results{
		Failures: []framework.TestResult{
			{TestID: framework.TestID{Path: []string{"cache first"}}, Errors: []error{errors.New("x")}},
			{TestID: framework.TestID{Path: []string{"a.b"}}, Errors: []error{errors.New("y")}},
		},
	}

	assert.Equal(t,
		`sw-test-env --suite 'my suite.jsonc' --webroot www --run '^cache first$' --run '^a\.b$'`,
		p.rerunCommand("sw-test-env", results),
	)
}
