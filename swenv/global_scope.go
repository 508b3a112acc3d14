package swenv

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/launchdarkly/sw-test-env/cache"
	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/events"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

// GlobalScope is the worker-side environment a script runs against. Scripts attach event
// listeners to it and may store named values.
type GlobalScope struct {
	events.Target
	Caches       *cache.Storage
	Clients      *clients.Clients
	Registration *Registration
	// Location is the absolute URL of the worker script.
	Location *url.URL
	// Origin is the serialized origin, e.g. "http://localhost:3333".
	Origin string

	origin    *url.URL
	fetcher   cache.Fetcher
	loggers   ldlog.Loggers
	values    map[string]interface{}
	lookup    func(name string) (interface{}, bool)
	onDestroy []func()
	lock      sync.Mutex
}

func newGlobalScope(
	registration *Registration,
	origin *url.URL,
	location *url.URL,
	fetcher cache.Fetcher,
	ids clients.IDSource,
	loggers ldlog.Loggers,
) *GlobalScope {
	return &GlobalScope{
		Caches:       cache.NewStorage(origin, fetcher, loggers),
		Clients:      clients.New(ids),
		Registration: registration,
		Location:     location,
		Origin:       serializeOrigin(origin),
		origin:       origin,
		fetcher:      fetcher,
		loggers:      loggers,
		values:       make(map[string]interface{}),
	}
}

// Fetch performs a request against the scope's origin. Strings and URLs become GET requests.
func (s *GlobalScope) Fetch(ctx context.Context, info cache.RequestInfo) (*http.Response, error) {
	req, err := cache.NormalizeRequest(s.origin, info)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, req)
}

// SkipWaiting does nothing; activation is always driven explicitly.
func (s *GlobalScope) SkipWaiting() error { return nil }

// Loggers returns the loggers scripts should write to.
func (s *GlobalScope) Loggers() ldlog.Loggers { return s.loggers }

// Set stores a value exported by the script.
func (s *GlobalScope) Set(name string, value interface{}) {
	s.lock.Lock()
	s.values[name] = value
	s.lock.Unlock()
}

// Get returns a value stored with Set, or else one resolved by the lookup function installed
// with SetLookup.
func (s *GlobalScope) Get(name string) (interface{}, bool) {
	s.lock.Lock()
	v, ok := s.values[name]
	lookup := s.lookup
	s.lock.Unlock()
	if ok || lookup == nil {
		return v, ok
	}
	return lookup(name)
}

// SetLookup lets an executor expose values the script defined itself, such as globals.
func (s *GlobalScope) SetLookup(fn func(name string) (interface{}, bool)) {
	s.lock.Lock()
	s.lookup = fn
	s.lock.Unlock()
}

// OnDestroy registers fn to run when the scope is torn down, so executors can release
// resources they hold for it.
func (s *GlobalScope) OnDestroy(fn func()) {
	s.lock.Lock()
	s.onDestroy = append(s.onDestroy, fn)
	s.lock.Unlock()
}

func (s *GlobalScope) destroy() {
	s.Caches.Clear()
	s.Clients.Clear()
	s.RemoveAllEventListeners()
	s.lock.Lock()
	hooks := s.onDestroy
	s.onDestroy = nil
	s.values = make(map[string]interface{})
	s.lookup = nil
	s.lock.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func serializeOrigin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
