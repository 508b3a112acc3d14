package suitedef

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Step actions.
const (
	ActionRegister   = "register"
	ActionInstall    = "install"
	ActionActivate   = "activate"
	ActionReady      = "ready"
	ActionFetch      = "fetch"
	ActionMessage    = "message"
	ActionPost       = "post"
	ActionPush       = "push"
	ActionTrigger    = "trigger"
	ActionUnregister = "unregister"
)

var allActions = []string{
	ActionRegister,
	ActionInstall,
	ActionActivate,
	ActionReady,
	ActionFetch,
	ActionMessage,
	ActionPost,
	ActionPush,
	ActionTrigger,
	ActionUnregister,
}

// Suite is the top level of a suite file.
type Suite struct {
	Name string `json:"name,omitempty"`
	// Origin overrides the configured origin for every scenario.
	Origin string `json:"origin,omitempty"`
	// Webroot is resolved against the directory of the suite file by Load.
	Webroot   string     `json:"webroot,omitempty"`
	Scenarios []Scenario `json:"scenarios"`
}

// Scenario runs against a fresh harness with one connected page.
type Scenario struct {
	Name string `json:"name"`
	// Script is the worker script URL, relative to the origin.
	Script string `json:"script"`
	Scope  string `json:"scope,omitempty"`
	// Page is the path of the connected page. Defaults to "/".
	Page   string  `json:"page,omitempty"`
	Routes []Route `json:"routes,omitempty"`
	Steps  []Step  `json:"steps"`
}

// Route is a canned response served by the scenario's origin.
type Route struct {
	Path    string              `json:"path"`
	Status  ldvalue.OptionalInt `json:"status,omitempty"`
	Body    string              `json:"body,omitempty"`
	Headers map[string]string   `json:"headers,omitempty"`
}

type Step struct {
	Action string `json:"action"`
	// Event names the event type for trigger steps.
	Event string `json:"event,omitempty"`
	// Request is the URL for fetch steps, or the script URL for register steps.
	Request string        `json:"request,omitempty"`
	Data    ldvalue.Value `json:"data,omitempty"`
	Expect  Expectation   `json:"expect,omitempty"`
}

// Expectation is checked after its step. Unset fields are not checked.
type Expectation struct {
	// Error is a substring of the error the step must fail with.
	Error      string                 `json:"error,omitempty"`
	State      string                 `json:"state,omitempty"`
	Controlled *bool                  `json:"controlled,omitempty"`
	Status     ldvalue.OptionalInt    `json:"status,omitempty"`
	Body       ldvalue.OptionalString `json:"body,omitempty"`
	Result     ldvalue.Value          `json:"result,omitempty"`
	// Messages are the messages the page received during the step, in order.
	Messages []ldvalue.Value `json:"messages,omitempty"`
	// Cached maps cache names to the paths of their keys, in insertion order.
	Cached map[string][]string `json:"cached,omitempty"`
	// Values are named globals of the worker scope.
	Values map[string]ldvalue.Value `json:"values,omitempty"`
}

// ScriptURL returns the script a register step registers.
func (s Step) ScriptURL(sc Scenario) string {
	if s.Request != "" {
		return s.Request
	}
	return sc.Script
}

// PagePath returns the path of the scenario's page.
func (sc Scenario) PagePath() string {
	if sc.Page == "" {
		return "/"
	}
	return sc.Page
}
