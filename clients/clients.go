package clients

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Client types.
const (
	TypeWindow       = "window"
	TypeWorker       = "worker"
	TypeSharedWorker = "sharedworker"
	TypeAll          = "all"
)

// PostFunc delivers a message posted to a Client.
type PostFunc func(ctx context.Context, message interface{}, transfer []interface{}) error

// IDSource hands out client ids.
type IDSource func() string

// Sequence returns an IDSource producing "1", "2", ... Ids are unique for the life of the
// source, so sharing one source between several Clients collections keeps ids unique across
// them.
func Sequence() IDSource {
	var n int64
	return func() string {
		return strconv.FormatInt(atomic.AddInt64(&n, 1), 10)
	}
}

// MatchOptions filter the result of Clients.MatchAll.
type MatchOptions struct {
	// Type is one of the Type constants; empty means TypeAll.
	Type string
	// IncludeUncontrolled is accepted for API compatibility. Every client is considered
	// controlled.
	IncludeUncontrolled bool
}

// Clients is the collection of clients known to a worker scope, in connection order.
type Clients struct {
	ids     IDSource
	clients []*Client
	lock    sync.Mutex
}

// New creates an empty collection. A nil ids uses a fresh Sequence.
func New(ids IDSource) *Clients {
	if ids == nil {
		ids = Sequence()
	}
	return &Clients{ids: ids}
}

// OpenWindow adds a window client for url. Messages posted to it are discarded.
func (c *Clients) OpenWindow(url string) *Client {
	return c.add(url, nil)
}

// Connect adds a window client for url whose messages are delivered through post.
func (c *Clients) Connect(url string, post PostFunc) *Client {
	return c.add(url, post)
}

func (c *Clients) add(url string, post PostFunc) *Client {
	client := &Client{
		ID:              c.ids(),
		Type:            TypeWindow,
		FrameType:       "top-level",
		visibilityState: "hidden",
		url:             url,
		post:            post,
	}
	c.lock.Lock()
	c.clients = append(c.clients, client)
	c.lock.Unlock()
	return client
}

// Get returns the client with the given id, or nil.
func (c *Clients) Get(id string) *Client {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, client := range c.clients {
		if client.ID == id {
			return client
		}
	}
	return nil
}

// MatchAll returns the clients of the requested type in connection order.
func (c *Clients) MatchAll(opts MatchOptions) []*Client {
	c.lock.Lock()
	defer c.lock.Unlock()
	ret := make([]*Client, 0, len(c.clients))
	for _, client := range c.clients {
		if opts.Type == "" || opts.Type == TypeAll || opts.Type == client.Type {
			ret = append(ret, client)
		}
	}
	return ret
}

// Claim makes the worker the controller of every client. Clients attached to a scope are already
// controlled once it activates, so there is nothing to do.
func (c *Clients) Claim() error { return nil }

// Remove drops the client with the given id and reports whether it was present.
func (c *Clients) Remove(id string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i, client := range c.clients {
		if client.ID == id {
			c.clients = append(c.clients[:i:i], c.clients[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every client.
func (c *Clients) Clear() {
	c.lock.Lock()
	c.clients = nil
	c.lock.Unlock()
}

// Len returns the number of clients.
func (c *Clients) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.clients)
}
