package clients

import (
	"context"
	"sync"
)

// Client is a page (or other context) known to a worker scope.
type Client struct {
	ID        string
	Type      string
	FrameType string

	url             string
	focused         bool
	visibilityState string
	post            PostFunc
	lock            sync.Mutex
}

func (c *Client) URL() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.url
}

func (c *Client) Focused() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.focused
}

// VisibilityState is "hidden" until the client is focused, then "visible".
func (c *Client) VisibilityState() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.visibilityState
}

// PostMessage delivers message to the page behind the client. For clients created by OpenWindow
// this does nothing.
func (c *Client) PostMessage(message interface{}, transfer ...interface{}) error {
	return c.PostMessageContext(context.Background(), message, transfer...)
}

// PostMessageContext is PostMessage with a context that is passed on to the resulting message
// event.
func (c *Client) PostMessageContext(ctx context.Context, message interface{}, transfer ...interface{}) error {
	if c.post == nil {
		return nil
	}
	return c.post(ctx, message, transfer)
}

func (c *Client) Focus() *Client {
	c.lock.Lock()
	c.focused = true
	c.visibilityState = "visible"
	c.lock.Unlock()
	return c
}

func (c *Client) Navigate(url string) *Client {
	c.lock.Lock()
	c.url = url
	c.lock.Unlock()
	return c
}
