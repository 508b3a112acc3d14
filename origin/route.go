package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

const maxQueuedRequests = 100

// IncomingRequest describes a request received by a Route.
type IncomingRequest struct {
	Method  string
	URL     *url.URL
	Headers http.Header
	Body    []byte
}

// Route is a mock handler registered on a Server.
type Route struct {
	owner    *Server
	path     string
	handler  http.Handler
	requests chan IncomingRequest
	closed   bool
	lock     sync.Mutex
}

// AwaitRequest waits for the next request to the route.
func (r *Route) AwaitRequest(timeout time.Duration) (IncomingRequest, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case req, ok := <-r.requests:
		if !ok {
			return IncomingRequest{}, fmt.Errorf("route %s was closed", r.path)
		}
		return req, nil
	case <-deadline.C:
		return IncomingRequest{}, fmt.Errorf("timed out waiting for a request to %s", r.path)
	}
}

// Close removes the route. Later requests for its path fall through to the webroot.
func (r *Route) Close() {
	r.owner.lock.Lock()
	if r.owner.routes[r.path] == r {
		delete(r.owner.routes, r.path)
	}
	r.owner.lock.Unlock()
	r.closeRequests()
}

func (r *Route) closeRequests() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.closed {
		r.closed = true
		close(r.requests)
	}
}

func (r *Route) serve(w http.ResponseWriter, req *http.Request, loggers ldlog.Loggers) {
	body, err := readBody(req)
	if err != nil {
		loggers.Errorf("Unexpected error trying to read request body: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	incoming := IncomingRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Header,
		Body:    body,
	}
	r.lock.Lock()
	if !r.closed {
		select { // non-blocking push
		case r.requests <- incoming:
		default:
			loggers.Warnf("Incoming request channel was full for %s", req.URL)
		}
	}
	r.lock.Unlock()
	r.handler.ServeHTTP(w, req)
}
