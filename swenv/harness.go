package swenv

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/launchdarkly/sw-test-env/cache"
	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/events"
	"github.com/launchdarkly/sw-test-env/origin"
	"golang.org/x/sync/singleflight"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

// Harness owns every Container and worker context of one test run. Independent harnesses share
// nothing.
type Harness struct {
	id          string
	executor    Executor
	fetcher     cache.Fetcher
	loggers     ldlog.Loggers
	clientIDs   clients.IDSource
	containers  []*Container
	contexts    map[string]*workerContext
	registering singleflight.Group
	// generation counts calls to Destroy; registrations started before one are discarded.
	generation int
	lock       sync.Mutex
}

// workerContext bundles the registration, worker and scope shared by every container under
// one scope key.
type workerContext struct {
	key          string
	registration *Registration
	worker       *Worker
	scope        *GlobalScope
	lifecycle    sync.Mutex
}

func NewHarness(opts Options) *Harness {
	id := uuid.New().String()
	loggers := opts.Loggers
	loggers.SetPrefix(fmt.Sprintf("[harness %s]", id[:8]))
	return &Harness{
		id:        id,
		executor:  opts.Executor,
		fetcher:   opts.Fetcher,
		loggers:   loggers,
		clientIDs: clients.Sequence(),
		contexts:  make(map[string]*workerContext),
	}
}

// ID identifies the harness in log output.
func (h *Harness) ID() string { return h.id }

// Connect creates a Container for a page at pageURL (DefaultOrigin if empty) serving files from
// webroot. If a registration already covers the page, the container joins it at once.
func (h *Harness) Connect(pageURL, webroot string) (*Container, error) {
	if pageURL == "" {
		pageURL = DefaultOrigin
	}
	if !strings.HasSuffix(pageURL, "/") {
		pageURL += "/"
	}
	href, err := url.Parse(pageURL)
	if err != nil || !href.IsAbs() || href.Host == "" {
		return nil, fmt.Errorf("invalid page URL %q", pageURL)
	}
	if webroot == "" {
		webroot = "."
	}
	o := &url.URL{Scheme: href.Scheme, Host: href.Host, Path: "/"}
	c := &Container{
		Href:    href.String(),
		Webroot: webroot,
		origin:  o,
		server:  origin.NewServer(o, webroot, h.loggers),
		router:  h,
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.containers = append(h.containers, c)
	var covering *workerContext
	for key, wc := range h.contexts {
		if strings.HasPrefix(c.Href, key) && (covering == nil || len(key) > len(covering.key)) {
			covering = wc
		}
	}
	if covering != nil {
		h.attachLocked(covering, c)
	}
	h.loggers.Debugf("Connected container for %s", c.Href)
	return c, nil
}

// Destroy detaches every container and tears down every registration.
func (h *Harness) Destroy() {
	h.lock.Lock()
	containers, contexts := h.containers, h.contexts
	h.containers = nil
	h.contexts = make(map[string]*workerContext)
	h.generation++
	h.lock.Unlock()

	for _, c := range containers {
		c.detach()
		c.RemoveAllEventListeners()
	}
	for _, wc := range contexts {
		wc.destroy()
	}
	h.loggers.Debugf("Destroyed %d container(s) and %d registration(s)", len(containers), len(contexts))
}

func (h *Harness) register(ctx context.Context, c *Container, scriptURL string, opts RegisterOptions) (*Registration, error) {
	scriptURL = strings.TrimPrefix(scriptURL, "/")
	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	scopeURL, err := url.Parse(scope)
	if err != nil {
		return nil, fmt.Errorf("invalid scope %q: %w", scope, err)
	}
	key := c.origin.ResolveReference(scopeURL).String()

	v, err, _ := h.registering.Do(key, func() (interface{}, error) {
		h.lock.Lock()
		existing := h.contexts[key]
		h.lock.Unlock()
		if existing != nil {
			return existing, nil
		}
		return h.createContext(ctx, c, key, scriptURL)
	})
	if err != nil {
		return nil, err
	}
	wc := v.(*workerContext)

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.contexts[key] != wc {
		return nil, fmt.Errorf("%w: registration for %s was removed", ErrNotRegistered, key)
	}
	for _, other := range h.containers {
		if (other == c || strings.HasPrefix(other.Href, key)) && other.currentContext() != wc {
			h.attachLocked(wc, other)
		}
	}
	return wc.registration, nil
}

func (h *Harness) createContext(ctx context.Context, c *Container, key, scriptURL string) (*workerContext, error) {
	if h.executor == nil {
		return nil, fmt.Errorf("%w: no executor configured", ErrScript)
	}
	scriptRef, err := url.Parse(scriptURL)
	if err != nil {
		return nil, fmt.Errorf("invalid script URL %q: %w", scriptURL, err)
	}
	location := c.origin.ResolveReference(scriptRef)

	h.lock.Lock()
	generation := h.generation
	h.lock.Unlock()

	wc := &workerContext{key: key}
	wc.registration = newRegistration(key, func() bool { return h.unregister(wc) })
	wc.worker = newWorker(scriptURL, func(ctx context.Context, message interface{}, transfer []interface{}) error {
		_, err := h.dispatch(ctx, wc, c, events.TypeMessage, append([]interface{}{message}, transfer...))
		return err
	})
	fetcher := h.fetcher
	if fetcher == nil {
		fetcher = c.server
	}
	wc.scope = newGlobalScope(wc.registration, c.origin, location, fetcher, h.clientIDs, h.loggers)
	wc.registration.moveTo(StateInstalling, wc.worker)

	script := Script{
		URL:      scriptURL,
		Location: location,
		Path:     scriptPath(c.Webroot, scriptRef.Path),
		Webroot:  c.Webroot,
	}
	if err := h.executor.Execute(ctx, wc.scope, script); err != nil {
		wc.destroy()
		return nil, fmt.Errorf("%w: %s: %w", ErrScript, scriptURL, err)
	}

	h.lock.Lock()
	if h.generation != generation {
		h.lock.Unlock()
		wc.destroy()
		return nil, fmt.Errorf("%w: harness was destroyed while registering %s", ErrNotRegistered, scriptURL)
	}
	h.contexts[key] = wc
	h.lock.Unlock()
	h.loggers.Debugf("Registered %s for scope %s", scriptURL, key)
	return wc, nil
}

func scriptPath(webroot, rel string) string {
	p := filepath.FromSlash(rel)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(webroot, p)
}

// attachLocked binds c to wc and connects a client for it. h.lock must be held.
func (h *Harness) attachLocked(wc *workerContext, c *Container) {
	if old := c.currentContext(); old != nil && old != wc {
		if client := c.Client(); client != nil {
			old.scope.Clients.Remove(client.ID)
		}
	}
	client := wc.scope.Clients.Connect(c.Href, func(ctx context.Context, message interface{}, transfer []interface{}) error {
		return h.postToPage(ctx, c, message, transfer)
	})
	c.attach(wc, client)
}

func (h *Harness) unregister(wc *workerContext) bool {
	h.lock.Lock()
	if h.contexts[wc.key] != wc {
		h.lock.Unlock()
		return false
	}
	delete(h.contexts, wc.key)
	var attached []*Container
	for _, c := range h.containers {
		if c.currentContext() == wc {
			attached = append(attached, c)
		}
	}
	h.lock.Unlock()

	for _, c := range attached {
		c.detach()
	}
	wc.destroy()
	h.loggers.Debugf("Unregistered scope %s", wc.key)
	return true
}

func (wc *workerContext) destroy() {
	wc.registration.destroy()
	wc.worker.setState(StateRedundant)
	wc.scope.destroy()
}

func (h *Harness) trigger(ctx context.Context, c *Container, eventType string, args ...interface{}) (interface{}, error) {
	wc := c.currentContext()
	if wc == nil {
		return nil, ErrNotRegistered
	}
	return h.dispatch(ctx, wc, c, eventType, args)
}

func (h *Harness) ready(ctx context.Context, c *Container) (*Registration, error) {
	wc := c.currentContext()
	if wc == nil {
		return nil, ErrNotRegistered
	}
	if c.Controller() != nil {
		return wc.registration, nil
	}

	wc.lifecycle.Lock()
	defer wc.lifecycle.Unlock()
	if wc.worker.State() == StateInstalling {
		if _, err := h.install(ctx, wc, nil); err != nil {
			return nil, err
		}
	}
	if s := wc.worker.State(); s == StateInstalled || s == StateActivating {
		if _, err := h.activate(ctx, wc, nil); err != nil {
			return nil, err
		}
	}
	if s := wc.worker.State(); s != StateActivated {
		return nil, fmt.Errorf("%w: ServiceWorker is %s", ErrInvalidState, s)
	}
	c.setController(wc.worker)
	return wc.registration, nil
}

// dispatch delivers an event from page c into the scope of wc.
func (h *Harness) dispatch(ctx context.Context, wc *workerContext, c *Container, eventType string, args []interface{}) (interface{}, error) {
	switch eventType {
	case events.TypeInstall:
		wc.lifecycle.Lock()
		defer wc.lifecycle.Unlock()
		return h.install(ctx, wc, args)
	case events.TypeActivate:
		wc.lifecycle.Lock()
		defer wc.lifecycle.Unlock()
		return h.activate(ctx, wc, args)
	case events.TypeError, events.TypeUnhandledRejection:
		return events.Dispatch(ctx, wc.scope, eventType, args...)
	}

	if s := wc.worker.State(); s != StateActivated {
		return nil, fmt.Errorf("%w: ServiceWorker not yet active (%s)", ErrInvalidState, s)
	}
	switch eventType {
	case events.TypeFetch:
		fetchArgs, err := fetchEventArgs(c, args)
		if err != nil {
			return nil, err
		}
		args = fetchArgs
	case events.TypeMessage:
		args = messageEventArgs(c, args)
	}
	return events.Dispatch(ctx, wc.scope, eventType, args...)
}

// install and activate must be called with wc.lifecycle held.
func (h *Harness) install(ctx context.Context, wc *workerContext, args []interface{}) (interface{}, error) {
	if s := wc.worker.State(); s != StateInstalling {
		return nil, fmt.Errorf("%w: cannot install ServiceWorker that is %s", ErrInvalidState, s)
	}
	wc.registration.moveTo(StateInstalling, wc.worker)
	h.setControllers(wc, nil)
	h.loggers.Debugf("Installing %s", wc.worker.ScriptURL)

	result, err := events.Dispatch(ctx, wc.scope, events.TypeInstall, args...)
	if err != nil {
		return nil, err
	}
	if wc.worker.State() == StateRedundant {
		return nil, fmt.Errorf("%w: ServiceWorker was unregistered during install", ErrInvalidState)
	}
	wc.worker.setState(StateInstalled)
	wc.registration.moveTo(StateInstalled, wc.worker)
	return result, nil
}

func (h *Harness) activate(ctx context.Context, wc *workerContext, args []interface{}) (interface{}, error) {
	switch s := wc.worker.State(); s {
	case StateInstalling:
		return nil, fmt.Errorf("%w: ServiceWorker not yet installed", ErrInvalidState)
	case StateInstalled, StateActivating:
	default:
		return nil, fmt.Errorf("%w: cannot activate ServiceWorker that is %s", ErrInvalidState, s)
	}
	wc.worker.setState(StateActivating)
	wc.registration.moveTo(StateActivating, wc.worker)
	h.setControllers(wc, nil)
	h.loggers.Debugf("Activating %s", wc.worker.ScriptURL)

	result, err := events.Dispatch(ctx, wc.scope, events.TypeActivate, args...)
	if err != nil {
		return nil, err
	}
	if wc.worker.State() == StateRedundant {
		return nil, fmt.Errorf("%w: ServiceWorker was unregistered during activate", ErrInvalidState)
	}
	wc.worker.setState(StateActivated)
	wc.registration.moveTo(StateActivated, wc.worker)
	h.setControllers(wc, wc.worker)
	return result, nil
}

func (h *Harness) setControllers(wc *workerContext, w *Worker) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, c := range h.containers {
		if c.currentContext() == wc {
			c.setController(w)
		}
	}
}

// postToPage delivers a message posted to c's client as a message event on c. Its source is
// c's controller.
func (h *Harness) postToPage(ctx context.Context, c *Container, message interface{}, transfer []interface{}) error {
	init := events.MessageInit{Ports: portsOf(transfer)}
	if w := c.Controller(); w != nil {
		init.Source = w
	}
	if s := c.Scope(); s != nil {
		init.Origin = s.Origin
	}
	_, err := events.Dispatch(ctx, c, events.TypeMessage, message, init)
	return err
}

func messageEventArgs(c *Container, args []interface{}) []interface{} {
	var data interface{}
	if len(args) > 0 {
		data = args[0]
	}
	var transfer []interface{}
	if len(args) > 1 {
		transfer = args[1:]
	}
	init := events.MessageInit{Origin: serializeOrigin(c.origin), Ports: portsOf(transfer)}
	if client := c.Client(); client != nil {
		init.Source = client
	}
	return []interface{}{data, init}
}

func fetchEventArgs(c *Container, args []interface{}) ([]interface{}, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, fmt.Errorf("fetch event requires a request")
	}
	req, ok := args[0].(*http.Request)
	if !ok {
		normalized, err := cache.NormalizeRequest(c.origin, args[0])
		if err != nil {
			return nil, err
		}
		normalized.Header.Set("Accept", acceptFor(normalized.URL.Path))
		req = normalized
	}
	var init events.FetchInit
	if len(args) > 1 {
		init, _ = args[1].(events.FetchInit)
	}
	if init.ClientID == "" {
		if client := c.Client(); client != nil {
			init.ClientID = client.ID
		}
	}
	return []interface{}{req, init}, nil
}

// acceptFor derives an Accept header from the extension of p, treating paths without one as
// HTML pages.
func acceptFor(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		ext = ".html"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "*/*"
}

func portsOf(transfer []interface{}) []events.Poster {
	var ports []events.Poster
	for _, t := range transfer {
		if p, ok := t.(events.Poster); ok {
			ports = append(ports, p)
		}
	}
	return ports
}
