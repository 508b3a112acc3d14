package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/sourcegraph/conc/iter"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

type entry struct {
	request  *http.Request
	response *http.Response
}

// Cache is a named, ordered collection of request/response pairs. Responses are stored and
// returned by reference.
type Cache struct {
	Name    string
	origin  *url.URL
	fetcher Fetcher
	loggers ldlog.Loggers
	entries []entry
	lock    sync.RWMutex
}

// New creates an empty cache. String and URL requests are resolved against origin; fetcher is
// used by Add and AddAll and may be nil if those are never called.
func New(name string, origin *url.URL, fetcher Fetcher, loggers ldlog.Loggers) *Cache {
	return &Cache{Name: name, origin: origin, fetcher: fetcher, loggers: loggers}
}

// Match returns the response of the first matching entry, or nil.
func (c *Cache) Match(info RequestInfo, opts ...QueryOptions) (*http.Response, error) {
	matches, err := c.match(info, optionsOf(opts))
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0].response, nil
}

// MatchAll returns the responses of every matching entry in insertion order. A nil info matches
// everything.
func (c *Cache) MatchAll(info RequestInfo, opts ...QueryOptions) ([]*http.Response, error) {
	matches, err := c.matchOrAll(info, optionsOf(opts))
	if err != nil {
		return nil, err
	}
	ret := make([]*http.Response, 0, len(matches))
	for _, m := range matches {
		ret = append(ret, m.response)
	}
	return ret, nil
}

// Keys returns the requests of every matching entry in insertion order. A nil info returns all
// keys.
func (c *Cache) Keys(info RequestInfo, opts ...QueryOptions) ([]*http.Request, error) {
	matches, err := c.matchOrAll(info, optionsOf(opts))
	if err != nil {
		return nil, err
	}
	ret := make([]*http.Request, 0, len(matches))
	for _, m := range matches {
		ret = append(ret, m.request)
	}
	return ret, nil
}

// Put stores res for info. An entry that already matches is replaced in place, keeping its key.
func (c *Cache) Put(info RequestInfo, res *http.Response) error {
	req, err := NormalizeRequest(c.origin, info)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.putLocked(req, res)
	return nil
}

func (c *Cache) putLocked(req *http.Request, res *http.Response) {
	for i, e := range c.entries {
		if requestsMatch(req, e.request, QueryOptions{}) {
			c.entries[i].response = res
			return
		}
	}
	c.entries = append(c.entries, entry{request: req, response: res})
}

// Delete removes every matching entry and reports whether any was removed.
func (c *Cache) Delete(info RequestInfo, opts ...QueryOptions) (bool, error) {
	req, err := NormalizeRequest(c.origin, info)
	if err != nil {
		return false, err
	}
	o := optionsOf(opts)
	c.lock.Lock()
	defer c.lock.Unlock()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !requestsMatch(req, e.request, o) {
			kept = append(kept, e)
		}
	}
	deleted := len(kept) != len(c.entries)
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = entry{}
	}
	c.entries = kept
	return deleted, nil
}

// Add fetches info and stores the response.
func (c *Cache) Add(ctx context.Context, info RequestInfo) error {
	return c.AddAll(ctx, info)
}

// AddAll fetches every request concurrently. If any fetch fails or is not ok, nothing is stored.
func (c *Cache) AddAll(ctx context.Context, infos ...RequestInfo) error {
	if c.fetcher == nil {
		return fmt.Errorf("cache %q has no fetcher", c.Name)
	}
	reqs := make([]*http.Request, 0, len(infos))
	for _, info := range infos {
		req, err := NormalizeRequest(c.origin, info)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	responses, err := iter.MapErr(reqs, func(req **http.Request) (*http.Response, error) {
		res, err := c.fetcher.Fetch(ctx, *req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			closeBody(res)
			return nil, fmt.Errorf("%w %d for %s", ErrBadResponse, res.StatusCode, (*req).URL)
		}
		return res, nil
	})
	if err != nil {
		for _, res := range responses {
			closeBody(res)
		}
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for i, req := range reqs {
		c.putLocked(req, responses[i])
	}
	c.loggers.Debugf("Cache %q: added %d request(s)", c.Name, len(reqs))
	return nil
}

func closeBody(res *http.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}

func (c *Cache) clear() {
	c.lock.Lock()
	c.entries = nil
	c.lock.Unlock()
}

func (c *Cache) matchOrAll(info RequestInfo, opts QueryOptions) ([]entry, error) {
	if info == nil {
		c.lock.RLock()
		defer c.lock.RUnlock()
		return append([]entry(nil), c.entries...), nil
	}
	return c.match(info, opts)
}

func (c *Cache) match(info RequestInfo, opts QueryOptions) ([]entry, error) {
	req, err := NormalizeRequest(c.origin, info)
	if err != nil {
		return nil, err
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	var ret []entry
	for _, e := range c.entries {
		if requestsMatch(req, e.request, opts) {
			ret = append(ret, e)
		}
	}
	return ret, nil
}

func optionsOf(opts []QueryOptions) QueryOptions {
	if len(opts) == 0 {
		return QueryOptions{}
	}
	return opts[0]
}
