package origin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

// ErrNetworkDisabled is returned by Fetch for any URL outside the server's origin.
var ErrNetworkDisabled = errors.New("network access is disabled")

// Server is an in-process origin. Requests are served by mock routes first and then by files
// under the webroot, without touching the network.
type Server struct {
	origin  *url.URL
	webroot string
	files   http.Handler
	routes  map[string]*Route
	loggers ldlog.Loggers
	lock    sync.Mutex
}

// NewServer creates a Server for origin. If webroot is empty, only routes are served.
func NewServer(origin *url.URL, webroot string, loggers ldlog.Loggers) *Server {
	s := &Server{
		origin:  origin,
		webroot: webroot,
		routes:  make(map[string]*Route),
		loggers: loggers,
	}
	if webroot != "" {
		s.files = http.FileServer(http.Dir(webroot))
	}
	return s
}

// Origin returns the origin the server answers for.
func (s *Server) Origin() *url.URL { return s.origin }

// Webroot returns the directory static files are served from.
func (s *Server) Webroot() string { return s.webroot }

// Handle adds a route that answers requests for path (query strings are ignored). A route
// registered for the same path replaces the previous one.
func (s *Server) Handle(path string, handler http.Handler) *Route {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	r := &Route{
		owner:    s,
		path:     path,
		handler:  handler,
		requests: make(chan IncomingRequest, maxQueuedRequests),
	}
	s.lock.Lock()
	old := s.routes[path]
	s.routes[path] = r
	s.lock.Unlock()
	if old != nil {
		old.closeRequests()
	}
	return r
}

// Fetch serves req in-process and returns the recorded response. Relative URLs are resolved
// against the origin; absolute URLs on any other host fail with ErrNetworkDisabled.
func (s *Server) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := s.origin.ResolveReference(req.URL)
	if target.Scheme != s.origin.Scheme || target.Host != s.origin.Host {
		return nil, fmt.Errorf("%w: %s", ErrNetworkDisabled, target)
	}
	inner := req.Clone(ctx)
	inner.URL = target
	inner.Host = target.Host
	inner.RequestURI = target.RequestURI()
	if inner.Body == nil {
		inner.Body = http.NoBody
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, inner)
	res := w.Result()
	res.Request = req
	s.loggers.Debugf("Fetched %s %s: %d", inner.Method, target, res.StatusCode)
	return res, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.lock.Lock()
	route := s.routes[req.URL.Path]
	files := s.files
	s.lock.Unlock()

	if route != nil {
		route.serve(w, req, s.loggers)
		return
	}
	if files != nil {
		files.ServeHTTP(w, req)
		return
	}
	s.loggers.Debugf("Received request for unrecognized URL path %s", req.URL.Path)
	w.WriteHeader(http.StatusNotFound)
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
