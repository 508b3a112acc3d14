package swenv

import (
	"context"
	"fmt"
	"net/url"
)

// Script identifies the worker script being registered.
type Script struct {
	// URL is the script URL as registered, without a leading slash.
	URL string
	// Location is URL resolved against the origin.
	Location *url.URL
	// Path is the script's file path under the webroot.
	Path string
	// Webroot is the directory the page's files are served from.
	Webroot string
}

// Executor populates a GlobalScope by running a worker script: it adds event listeners and
// whatever else the script attaches to the scope.
type Executor interface {
	Execute(ctx context.Context, scope *GlobalScope, script Script) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, scope *GlobalScope, script Script) error

func (f ExecutorFunc) Execute(ctx context.Context, scope *GlobalScope, script Script) error {
	return f(ctx, scope, script)
}

// Scripts is an Executor for worker scripts written in Go, keyed by script URL.
type Scripts map[string]func(scope *GlobalScope) error

func (s Scripts) Execute(ctx context.Context, scope *GlobalScope, script Script) error {
	fn, ok := s[script.URL]
	if !ok {
		return fmt.Errorf("no script defined for %q", script.URL)
	}
	return fn(scope)
}
