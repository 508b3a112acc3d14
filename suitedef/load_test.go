package suitedef

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const sampleSuite = `{
	// scenarios share the origin
	"name": "sample",
	"webroot": "www",
	"scenarios": [
		{
			"name": "offline",
			"script": "sw.js",
			"routes": [{"path": "/api", "status": 201, "body": "ok"}],
			"steps": [
				{"action": "ready", "expect": {"controlled": true, "state": "activated"}},
				{"action": "fetch", "request": "/index.js", "expect": {"status": 200, "body": "js"}},
				{"action": "message", "data": {"n": 1}, "expect": {"messages": [{"n": 2}]}},
			],
		},
	],
}`

func TestParseSuite(t *testing.T) {
	s, err := Parse([]byte(sampleSuite))
	require.NoError(t, err)

	assert.Equal(t, "sample", s.Name)
	require.Len(t, s.Scenarios, 1)
	sc := s.Scenarios[0]
	assert.Equal(t, "/", sc.PagePath())
	assert.Equal(t, []Route{{Path: "/api", Status: ldvalue.NewOptionalInt(201), Body: "ok"}}, sc.Routes)
	require.Len(t, sc.Steps, 3)

	ready := sc.Steps[0]
	require.NotNil(t, ready.Expect.Controlled)
	assert.True(t, *ready.Expect.Controlled)
	assert.Equal(t, "activated", ready.Expect.State)

	fetch := sc.Steps[1]
	assert.Equal(t, ldvalue.NewOptionalInt(200), fetch.Expect.Status)
	assert.Equal(t, ldvalue.NewOptionalString("js"), fetch.Expect.Body)
	assert.True(t, fetch.Expect.Result.IsNull())

	message := sc.Steps[2]
	assert.Equal(t, `{"n":1}`, message.Data.JSONString())
	require.Len(t, message.Expect.Messages, 1)
	assert.True(t, ldvalue.ObjectBuild().Set("n", ldvalue.Int(2)).Build().Equal(message.Expect.Messages[0]))
}

func TestParseReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`{"scenarios": [
		{"name": "a", "steps": [{"action": "register"}, {"action": "fetch"}, {"action": "dance"}]},
		{"name": "a", "script": "sw.js", "steps": [{"action": "trigger"}]},
		{"script": "sw.js", "steps": []},
	]}`))

	require.ErrorIs(t, err, ErrInvalidSuite)
	for _, want := range []string{
		`scenario "a": step 0 (register): no script to register`,
		`scenario "a": step 1 (fetch): request is required`,
		`scenario "a": step 2 (dance): unknown action`,
		`scenario "a": duplicate name`,
		`scenario "a": step 0 (trigger): event is required`,
		`scenario 2: name is required`,
		`scenario 2: no steps`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"scenarios": [{"name": "a", "script": "sw.js", "steps": [{"action": "ready", "expect": {"colour": 1}}]}]}`))
	require.ErrorIs(t, err, ErrInvalidSuite)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseRejectsEmptySuite(t *testing.T) {
	_, err := Parse([]byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidSuite)

	_, err = Parse([]byte(`{"scenarios": [`))
	assert.ErrorIs(t, err, ErrInvalidSuite)
}

func TestLoadResolvesWebrootAgainstSuiteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(sampleSuite), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "www"), s.Webroot)

	_, err = Load(filepath.Join(dir, "missing.jsonc"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStepScriptURL(t *testing.T) {
	sc := Scenario{Script: "sw.js"}
	assert.Equal(t, "sw.js", Step{Action: ActionRegister}.ScriptURL(sc))
	assert.Equal(t, "other.js", Step{Action: ActionRegister, Request: "other.js"}.ScriptURL(sc))
}
