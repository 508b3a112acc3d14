package origin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlogtest"
)

func newTestServer(t *testing.T, webroot string) *Server {
	u, err := url.Parse("http://localhost:3333/")
	require.NoError(t, err)
	return NewServer(u, webroot, ldlog.NewDisabledLoggers())
}

func get(t *testing.T, s *Server, target string) *http.Response {
	req, err := http.NewRequest("GET", target, nil)
	require.NoError(t, err)
	res, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	return res
}

func readAll(t *testing.T, res *http.Response) string {
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(data)
}

func TestFetchServesFilesFromWebroot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.js"), []byte("console.log('hi')"), 0o600))
	s := newTestServer(t, dir)

	res := get(t, s, "http://localhost:3333/index.js")
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "console.log('hi')", readAll(t, res))

	res = get(t, s, "/index.js")
	assert.Equal(t, 200, res.StatusCode)

	res = get(t, s, "/missing.js")
	assert.Equal(t, 404, res.StatusCode)
}

func TestFetchWithoutWebrootReturns404(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	u, _ := url.Parse("http://localhost:3333/")
	s := NewServer(u, "", mockLog.Loggers)

	res := get(t, s, "/index.js")
	assert.Equal(t, 404, res.StatusCode)
	assert.True(t, mockLog.HasMessageMatch(ldlog.Debug, "unrecognized URL path /index.js"))
}

func TestFetchForeignHostIsDisabled(t *testing.T) {
	s := newTestServer(t, "")
	req, _ := http.NewRequest("GET", "https://example.com/", nil)

	_, err := s.Fetch(context.Background(), req)
	assert.True(t, errors.Is(err, ErrNetworkDisabled))
}

func TestRouteTakesPrecedenceAndRecordsRequests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api"), []byte("file"), 0o600))
	s := newTestServer(t, dir)
	route := s.Handle("api", httphelpers.HandlerWithResponse(201, http.Header{"X-Test": {"yes"}}, []byte("route")))

	req, _ := http.NewRequest("POST", "/api?x=1", strings.NewReader("payload"))
	req.Header.Set("Accept", "application/json")
	res, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "yes", res.Header.Get("X-Test"))
	assert.Equal(t, "route", readAll(t, res))

	incoming, err := route.AwaitRequest(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "POST", incoming.Method)
	assert.Equal(t, "x=1", incoming.URL.RawQuery)
	assert.Equal(t, "application/json", incoming.Headers.Get("Accept"))
	assert.Equal(t, "payload", string(incoming.Body))

	route.Close()
	res = get(t, s, "/api")
	assert.Equal(t, "file", readAll(t, res))

	_, err = route.AwaitRequest(time.Millisecond)
	assert.Error(t, err)
}

func TestAwaitRequestTimesOut(t *testing.T) {
	s := newTestServer(t, "")
	route := s.Handle("/never", httphelpers.HandlerWithStatus(200))

	_, err := route.AwaitRequest(10 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestHandleReplacesRoute(t *testing.T) {
	s := newTestServer(t, "")
	first := s.Handle("/x", httphelpers.HandlerWithStatus(200))
	s.Handle("/x", httphelpers.HandlerWithStatus(202))

	assert.Equal(t, 202, get(t, s, "/x").StatusCode)

	first.Close()
	assert.Equal(t, 202, get(t, s, "/x").StatusCode)
}
