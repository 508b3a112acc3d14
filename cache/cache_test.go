package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlogtest"
)

var testOrigin, _ = url.Parse("http://localhost:3333/")

func handlerFetcher(h http.Handler) Fetcher {
	return FetcherFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req.WithContext(ctx))
		return w.Result(), nil
	})
}

func newTestCache(fetcher Fetcher) *Cache {
	return New("test", testOrigin, fetcher, ldlog.NewDisabledLoggers())
}

func newRequest(t *testing.T, method, target string) *http.Request {
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	return req
}

func TestPutThenMatchReturnsSameResponse(t *testing.T) {
	c := newTestCache(nil)
	req := newRequest(t, "GET", "http://localhost:3333/foo.js")
	res := &http.Response{StatusCode: 200}

	require.NoError(t, c.Put(req, res))

	got, err := c.Match(req)
	require.NoError(t, err)
	assert.Same(t, res, got)
}

func TestMatchStringIsResolvedAgainstOrigin(t *testing.T) {
	c := newTestCache(nil)
	res := &http.Response{StatusCode: 200}
	require.NoError(t, c.Put("foo.js", res))

	for _, info := range []RequestInfo{"/foo.js", "http://localhost:3333/foo.js", &url.URL{Path: "foo.js"}} {
		got, err := c.Match(info)
		require.NoError(t, err)
		assert.Same(t, res, got, "request: %v", info)
	}
}

func TestMatchIgnoreSearch(t *testing.T) {
	c := newTestCache(nil)
	res := &http.Response{StatusCode: 200}
	require.NoError(t, c.Put(newRequest(t, "GET", "http://localhost:3333/foo.js?q=1"), res))

	got, err := c.Match("foo.js")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.Match("foo.js", QueryOptions{IgnoreSearch: true})
	require.NoError(t, err)
	assert.Same(t, res, got)
}

func TestMatchIgnoreMethod(t *testing.T) {
	c := newTestCache(nil)
	res := &http.Response{StatusCode: 200}
	require.NoError(t, c.Put(newRequest(t, "POST", "http://localhost:3333/api"), res))

	got, err := c.Match("/api")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.Match("/api", QueryOptions{IgnoreMethod: true})
	require.NoError(t, err)
	assert.Same(t, res, got)
}

func TestPutReplacesExistingEntryInPlace(t *testing.T) {
	c := newTestCache(nil)
	first, second, other := &http.Response{StatusCode: 200}, &http.Response{StatusCode: 201}, &http.Response{StatusCode: 202}
	originalKey := newRequest(t, "GET", "http://localhost:3333/a.js")
	require.NoError(t, c.Put(originalKey, first))
	require.NoError(t, c.Put("/b.js", other))
	require.NoError(t, c.Put("a.js", second))

	all, err := c.MatchAll(nil)
	require.NoError(t, err)
	assert.Equal(t, []*http.Response{second, other}, all)

	keys, err := c.Keys(nil)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Same(t, originalKey, keys[0])
}

func TestMatchAllReturnsEveryMatchInInsertionOrder(t *testing.T) {
	c := newTestCache(nil)
	a, b := &http.Response{StatusCode: 200}, &http.Response{StatusCode: 200}
	require.NoError(t, c.Put("/x?v=1", a))
	require.NoError(t, c.Put("/x?v=2", b))
	require.NoError(t, c.Put("/y", &http.Response{}))

	all, err := c.MatchAll("/x", QueryOptions{IgnoreSearch: true})
	require.NoError(t, err)
	assert.Equal(t, []*http.Response{a, b}, all)

	keys, err := c.Keys("/x", QueryOptions{IgnoreSearch: true})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "v=1", keys[0].URL.RawQuery)
}

func TestDelete(t *testing.T) {
	c := newTestCache(nil)
	require.NoError(t, c.Put("/a", &http.Response{}))
	require.NoError(t, c.Put("/b", &http.Response{}))

	deleted, err := c.Delete("/a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("/a")
	require.NoError(t, err)
	assert.False(t, deleted)

	keys, err := c.Keys(nil)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "/b", keys[0].URL.Path)
}

func TestUnsupportedRequestType(t *testing.T) {
	c := newTestCache(nil)
	_, err := c.Match(42)
	assert.Error(t, err)
}

func TestAddStoresFetchedResponse(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(200, http.Header{"Content-Type": {"text/javascript"}}, []byte("x")))
	c := newTestCache(handlerFetcher(handler))

	require.NoError(t, c.Add(context.Background(), "index.js"))

	r := <-requestsCh
	assert.Equal(t, "/index.js", r.Request.URL.Path)
	assert.Equal(t, "GET", r.Request.Method)

	res, err := c.Match("/index.js")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "text/javascript", res.Header.Get("Content-Type"))
}

func TestAddRejectsBadResponse(t *testing.T) {
	c := newTestCache(handlerFetcher(httphelpers.HandlerWithStatus(404)))

	err := c.Add(context.Background(), "missing.js")
	assert.True(t, errors.Is(err, ErrBadResponse))

	keys, err := c.Keys(nil)
	require.NoError(t, err)
	assert.Len(t, keys, 0)
}

func TestAddAllStoresNothingIfAnyRequestFails(t *testing.T) {
	handler := httphelpers.HandlerForPath("/index.js", httphelpers.HandlerWithStatus(200), httphelpers.HandlerWithStatus(500))
	c := newTestCache(handlerFetcher(handler))

	err := c.AddAll(context.Background(), "/index.js", "/index.css")
	assert.True(t, errors.Is(err, ErrBadResponse))

	keys, err := c.Keys(nil)
	require.NoError(t, err)
	assert.Len(t, keys, 0)
}

func TestAddAllStoresEveryResponse(t *testing.T) {
	c := newTestCache(handlerFetcher(httphelpers.HandlerWithStatus(200)))
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	c.loggers = mockLog.Loggers

	require.NoError(t, c.AddAll(context.Background(), "/index.js", "/index.css"))

	keys, err := c.Keys(nil)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "/index.js", keys[0].URL.Path)
	assert.Equal(t, "/index.css", keys[1].URL.Path)
	assert.True(t, mockLog.HasMessageMatch(ldlog.Debug, `added 2 request`))
}

func TestAddWithoutFetcher(t *testing.T) {
	c := newTestCache(nil)
	assert.Error(t, c.Add(context.Background(), "/index.js"))
}

type trackedBody struct {
	io.Reader
	closed *atomic.Int32
}

func (b trackedBody) Close() error {
	b.closed.Add(1)
	return nil
}

func TestAddAllClosesDiscardedResponses(t *testing.T) {
	var closed atomic.Int32
	c := newTestCache(FetcherFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		status := http.StatusOK
		if req.URL.Path == "/missing.js" {
			status = http.StatusNotFound
		}
		return &http.Response{StatusCode: status, Body: trackedBody{Reader: strings.NewReader("x"), closed: &closed}}, nil
	}))

	err := c.AddAll(context.Background(), "/index.js", "/missing.js", "/index.css")
	require.True(t, errors.Is(err, ErrBadResponse))
	assert.Equal(t, int32(3), closed.Load())

	closed.Store(0)
	require.NoError(t, c.AddAll(context.Background(), "/index.js", "/index.css"))
	assert.Equal(t, int32(0), closed.Load())
}
