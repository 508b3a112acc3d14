package swenv

import (
	"sync"
)

// ContentDescription describes an item added to a ContentIndex.
type ContentDescription struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	URL         string `json:"url"`
}

// ContentIndex lists content available offline, in insertion order.
type ContentIndex struct {
	ids   []string
	items map[string]ContentDescription
	lock  sync.Mutex
}

func newContentIndex() *ContentIndex {
	return &ContentIndex{items: make(map[string]ContentDescription)}
}

// Add stores d, replacing any item with the same ID.
func (c *ContentIndex) Add(d ContentDescription) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.items[d.ID]; !ok {
		c.ids = append(c.ids, d.ID)
	}
	c.items[d.ID] = d
}

func (c *ContentIndex) Delete(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i:i], c.ids[i+1:]...)
			break
		}
	}
}

func (c *ContentIndex) GetAll() []ContentDescription {
	c.lock.Lock()
	defer c.lock.Unlock()
	ret := make([]ContentDescription, 0, len(c.ids))
	for _, id := range c.ids {
		ret = append(ret, c.items[id])
	}
	return ret
}

func (c *ContentIndex) clear() {
	c.lock.Lock()
	c.ids = nil
	c.items = make(map[string]ContentDescription)
	c.lock.Unlock()
}

// NavigationPreloadState is returned by NavigationPreloadManager.GetState.
type NavigationPreloadState struct {
	Enabled     bool   `json:"enabled"`
	HeaderValue string `json:"headerValue"`
}

// NavigationPreloadManager accepts preload settings but never preloads; GetState always reports
// preload as disabled.
type NavigationPreloadManager struct{}

func (m *NavigationPreloadManager) Enable() error { return nil }

func (m *NavigationPreloadManager) Disable() error { return nil }

func (m *NavigationPreloadManager) SetHeaderValue(value string) error { return nil }

func (m *NavigationPreloadManager) GetState() NavigationPreloadState {
	return NavigationPreloadState{}
}

const testApplicationServerKey = "BCnKOeg_Ly8MuvV3CIn21OahjnOOq8zeo_J0ojOPMD6RhxruIVFpLZzPi0huCn45aLq8RcHjOIMol0ytRhgAu8k"

// PushSubscriptionOptions are the options a subscription was created with.
type PushSubscriptionOptions struct {
	UserVisibleOnly      bool   `json:"userVisibleOnly"`
	ApplicationServerKey string `json:"applicationServerKey"`
}

// PushSubscription is the single fake subscription handed out by PushManager.
type PushSubscription struct {
	Endpoint       string                  `json:"endpoint"`
	ExpirationTime *int64                  `json:"expirationTime"`
	Options        PushSubscriptionOptions `json:"options"`
}

// GetKey returns a zeroed key of the size a browser would produce for name, or nil for an
// unknown name.
func (s *PushSubscription) GetKey(name string) []byte {
	switch name {
	case "p256dh":
		return make([]byte, 65)
	case "auth":
		return make([]byte, 16)
	case "applicationServerKey":
		return make([]byte, 87)
	}
	return nil
}

func (s *PushSubscription) Unsubscribe() bool { return true }

// PushManager always grants permission and returns the same subscription.
type PushManager struct {
	subscription *PushSubscription
	lock         sync.Mutex
}

func newPushManager() *PushManager {
	return &PushManager{subscription: &PushSubscription{
		Endpoint: "test",
		Options:  PushSubscriptionOptions{UserVisibleOnly: true, ApplicationServerKey: testApplicationServerKey},
	}}
}

func (m *PushManager) GetSubscription() *PushSubscription {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.subscription
}

func (m *PushManager) Subscribe(opts PushSubscriptionOptions) *PushSubscription {
	return m.GetSubscription()
}

func (m *PushManager) PermissionState() string { return "granted" }

func (m *PushManager) destroy() {
	m.lock.Lock()
	m.subscription = nil
	m.lock.Unlock()
}
