package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestInfo identifies a request: a string (absolute, or relative to the cache's origin),
// a *url.URL or an *http.Request.
type RequestInfo interface{}

// Fetcher performs requests on behalf of Cache.Add and Cache.AddAll.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// QueryOptions control how requests are compared.
type QueryOptions struct {
	IgnoreSearch bool
	IgnoreMethod bool
	// IgnoreVary is accepted for API compatibility. Vary headers are never considered.
	IgnoreVary bool
	// CacheName restricts Storage.Match to a single cache.
	CacheName string
}

// NormalizeRequest turns info into a request. Strings and URLs are resolved against origin into
// GET requests; requests are returned unchanged.
func NormalizeRequest(origin *url.URL, info RequestInfo) (*http.Request, error) {
	switch r := info.(type) {
	case *http.Request:
		if r == nil || r.URL == nil {
			return nil, fmt.Errorf("nil request")
		}
		return r, nil
	case *url.URL:
		return http.NewRequest(http.MethodGet, resolve(origin, r).String(), nil)
	case string:
		u, err := url.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL %q: %w", r, err)
		}
		return http.NewRequest(http.MethodGet, resolve(origin, u).String(), nil)
	default:
		return nil, fmt.Errorf("unsupported request type %T", info)
	}
}

func resolve(origin *url.URL, u *url.URL) *url.URL {
	if origin == nil {
		return u
	}
	return origin.ResolveReference(u)
}

func normalizePathname(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// requestsMatch compares by pathname, then method and query string unless ignored. Hosts and
// Vary headers play no part.
func requestsMatch(a, b *http.Request, opts QueryOptions) bool {
	if normalizePathname(a.URL.Path) != normalizePathname(b.URL.Path) {
		return false
	}
	if !opts.IgnoreMethod && methodOf(a) != methodOf(b) {
		return false
	}
	if !opts.IgnoreSearch && a.URL.RawQuery != b.URL.RawQuery {
		return false
	}
	return true
}

func methodOf(r *http.Request) string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}
