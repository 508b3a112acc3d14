package cache

import (
	"net/http"
	"net/url"
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

// Storage owns a set of named caches, kept in creation order.
type Storage struct {
	origin  *url.URL
	fetcher Fetcher
	loggers ldlog.Loggers
	names   []string
	caches  map[string]*Cache
	lock    sync.Mutex
}

func NewStorage(origin *url.URL, fetcher Fetcher, loggers ldlog.Loggers) *Storage {
	return &Storage{
		origin:  origin,
		fetcher: fetcher,
		loggers: loggers,
		caches:  make(map[string]*Cache),
	}
}

// Open returns the cache called name, creating it if necessary.
func (s *Storage) Open(name string) *Cache {
	s.lock.Lock()
	defer s.lock.Unlock()
	if c, ok := s.caches[name]; ok {
		return c
	}
	c := New(name, s.origin, s.fetcher, s.loggers)
	s.caches[name] = c
	s.names = append(s.names, name)
	s.loggers.Debugf("Opened cache %q", name)
	return c
}

func (s *Storage) Has(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.caches[name]
	return ok
}

// Delete removes the cache called name and reports whether it existed.
func (s *Storage) Delete(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	c, ok := s.caches[name]
	if !ok {
		return false
	}
	c.clear()
	delete(s.caches, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the cache names in creation order.
func (s *Storage) Keys() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.names...)
}

// Match searches the cache named by opts.CacheName, or else every cache in creation order, and
// returns the first matching response. A missing named cache is an error wrapping ErrNotFound;
// a miss is not.
func (s *Storage) Match(info RequestInfo, opts ...QueryOptions) (*http.Response, error) {
	o := optionsOf(opts)
	if o.CacheName != "" {
		s.lock.Lock()
		c, ok := s.caches[o.CacheName]
		s.lock.Unlock()
		if !ok {
			return nil, notFoundError{name: o.CacheName}
		}
		return c.Match(info, o)
	}

	for _, c := range s.ordered() {
		res, err := c.Match(info, o)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

// Clear drops every cache.
func (s *Storage) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, c := range s.caches {
		c.clear()
	}
	s.caches = make(map[string]*Cache)
	s.names = nil
}

func (s *Storage) ordered() []*Cache {
	s.lock.Lock()
	defer s.lock.Unlock()
	ret := make([]*Cache, 0, len(s.names))
	for _, n := range s.names {
		ret = append(ret, s.caches[n])
	}
	return ret
}
