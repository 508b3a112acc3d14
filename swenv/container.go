package swenv

import (
	"context"
	"net/url"
	"sync"

	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/events"
	"github.com/launchdarkly/sw-test-env/origin"
)

// RegisterOptions are the options of Container.Register.
type RegisterOptions struct {
	// Scope is resolved against the container's origin. Defaults to "/".
	Scope string
}

// router is the part of the Harness a Container delegates to.
type router interface {
	register(ctx context.Context, c *Container, scriptURL string, opts RegisterOptions) (*Registration, error)
	trigger(ctx context.Context, c *Container, eventType string, args ...interface{}) (interface{}, error)
	ready(ctx context.Context, c *Container) (*Registration, error)
}

// Container is the page-side entry point, one per connected page. Message events posted by the
// worker to the page's client are dispatched on the Container itself.
type Container struct {
	events.Target
	// Href is the URL of the page.
	Href    string
	Webroot string

	origin       *url.URL
	server       *origin.Server
	router       router
	controller   *Worker
	scope        *GlobalScope
	registration *Registration
	context      *workerContext
	client       *clients.Client
	lock         sync.Mutex
}

// Register registers the worker script at scriptURL, or joins the existing registration for the
// same scope.
func (c *Container) Register(ctx context.Context, scriptURL string, opts ...RegisterOptions) (*Registration, error) {
	var o RegisterOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return c.router.register(ctx, c, scriptURL, o)
}

// Trigger dispatches an event of eventType in the worker scope and waits for it to complete.
//
// install and activate drive the lifecycle. fetch takes a request (string, *url.URL or
// *http.Request) and an optional events.FetchInit, and returns the response given to
// RespondWith. message takes the data followed by transferred objects. Any other type is
// dispatched as a generic event.
func (c *Container) Trigger(ctx context.Context, eventType string, args ...interface{}) (interface{}, error) {
	return c.router.trigger(ctx, c, eventType, args...)
}

// Ready installs and activates the worker as needed and returns the registration once the
// container is controlled.
func (c *Container) Ready(ctx context.Context) (*Registration, error) {
	return c.router.ready(ctx, c)
}

// Controller returns the active worker controlling the page, or nil.
func (c *Container) Controller() *Worker {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.controller
}

// Scope returns the worker scope the container is attached to, or nil.
func (c *Container) Scope() *GlobalScope {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.scope
}

// Client returns the page's client in the worker scope, or nil.
func (c *Container) Client() *clients.Client {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.client
}

// Server returns the in-process origin the page and its worker fetch from. Routes added to it
// are visible to both.
func (c *Container) Server() *origin.Server { return c.server }

// Origin returns the page's origin, always with a trailing slash.
func (c *Container) Origin() *url.URL { return c.origin }

// GetRegistration returns the registration the container is attached to, or nil.
func (c *Container) GetRegistration() *Registration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.registration
}

// GetRegistrations returns the container's registration as a list, empty when there is none.
func (c *Container) GetRegistrations() []*Registration {
	if r := c.GetRegistration(); r != nil {
		return []*Registration{r}
	}
	return nil
}

func (c *Container) currentContext() *workerContext {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.context
}

func (c *Container) setController(w *Worker) {
	c.lock.Lock()
	c.controller = w
	c.lock.Unlock()
}

func (c *Container) attach(wc *workerContext, client *clients.Client) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.context = wc
	c.registration = wc.registration
	c.scope = wc.scope
	c.client = client
	c.controller = nil
	if wc.worker.State() == StateActivated {
		c.controller = wc.worker
	}
}

func (c *Container) detach() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.context = nil
	c.registration = nil
	c.scope = nil
	c.client = nil
	c.controller = nil
}
