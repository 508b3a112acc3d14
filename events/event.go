package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/multierr"
)

// Event types with dedicated handling.
const (
	TypeInstall            = "install"
	TypeActivate           = "activate"
	TypeFetch              = "fetch"
	TypeMessage            = "message"
	TypeError              = "error"
	TypeUnhandledRejection = "unhandledrejection"
	TypePush               = "push"
	TypeContentDelete      = "contentdelete"
)

// Poster is anything a message can be posted to: workers, clients and message ports.
type Poster interface {
	PostMessage(message interface{}, transfer ...interface{}) error
}

// Event is one of the event variants defined in this package. Listeners type-switch on the
// concrete type (*FetchEvent, *MessageEvent, ...) to reach variant-specific fields.
type Event interface {
	Type() string
	// WaitUntil extends the lifetime of the event until p settles.
	WaitUntil(p *Promise)
	// Context returns the context the event was dispatched with.
	Context() context.Context

	setContext(ctx context.Context)
	settle(ctx context.Context) (interface{}, error)
}

// ExtendableEvent is the generic event variant, used for install, activate and any custom type.
type ExtendableEvent struct {
	typ        string
	ctx        context.Context
	extensions []*Promise
	lock       sync.Mutex
}

// NewExtendableEvent creates a generic event of the given type.
func NewExtendableEvent(typ string) *ExtendableEvent {
	return &ExtendableEvent{typ: typ}
}

func (e *ExtendableEvent) Type() string { return e.typ }

func (e *ExtendableEvent) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *ExtendableEvent) setContext(ctx context.Context) { e.ctx = ctx }

func (e *ExtendableEvent) WaitUntil(p *Promise) {
	if p == nil {
		return
	}
	e.lock.Lock()
	e.extensions = append(e.extensions, p)
	e.lock.Unlock()
}

// settle waits for every WaitUntil promise. The result is the value of the last one registered.
func (e *ExtendableEvent) settle(ctx context.Context) (interface{}, error) {
	e.lock.Lock()
	extensions := append([]*Promise(nil), e.extensions...)
	e.lock.Unlock()

	var result interface{}
	var errs error
	for _, p := range extensions {
		value, err := p.Await(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		result = value
	}
	return result, errs
}

// FetchInit holds the optional fields of a FetchEvent.
type FetchInit struct {
	ClientID          string
	ResultingClientID string
	ReplacesClientID  string
	IsReload          bool
	PreloadResponse   *Promise
}

// FetchEvent is dispatched for a request made by a controlled page.
type FetchEvent struct {
	ExtendableEvent
	FetchInit
	Request  *http.Request
	response *Promise
}

// RespondWith supplies the response for the request. The event resolves to the value of p.
func (e *FetchEvent) RespondWith(p *Promise) {
	e.lock.Lock()
	e.response = p
	e.lock.Unlock()
}

func (e *FetchEvent) settle(ctx context.Context) (interface{}, error) {
	result, err := e.ExtendableEvent.settle(ctx)
	e.lock.Lock()
	response := e.response
	e.lock.Unlock()
	if response == nil {
		return result, err
	}
	value, respErr := response.Await(ctx)
	return value, multierr.Append(respErr, err)
}

// MessageInit holds the optional fields of a MessageEvent.
type MessageInit struct {
	Origin      string
	LastEventID string
	Source      Poster
	Ports       []Poster
}

// MessageEvent carries data posted by a client, worker or message port.
type MessageEvent struct {
	ExtendableEvent
	MessageInit
	Data interface{}
}

// ErrorEvent reports an error or an unhandled rejection. It resolves to the error itself.
type ErrorEvent struct {
	ExtendableEvent
	Message string
	Err     error
}

func (e *ErrorEvent) settle(ctx context.Context) (interface{}, error) {
	if _, err := e.ExtendableEvent.settle(ctx); err != nil {
		return nil, err
	}
	return e.Err, nil
}

// PushMessageData is the payload of a PushEvent.
type PushMessageData struct {
	value interface{}
}

// JSON returns the payload as it was supplied.
func (d PushMessageData) JSON() interface{} {
	if d.value == nil {
		return map[string]interface{}{}
	}
	return d.value
}

// Text returns the payload encoded as JSON, or the payload itself if it is already a string.
func (d PushMessageData) Text() string {
	if s, ok := d.value.(string); ok {
		return s
	}
	data, _ := json.Marshal(d.JSON())
	return string(data)
}

// PushEvent is dispatched when a push message arrives.
type PushEvent struct {
	ExtendableEvent
	Data PushMessageData
}

// ContentIndexEvent is dispatched when indexed content is removed by the user agent.
type ContentIndexEvent struct {
	ExtendableEvent
	ID string
}

// NewEvent builds the event variant for typ from the dispatch arguments:
//
//	fetch:               (*http.Request, [FetchInit])
//	message:             (data, [MessageInit])
//	error, rejection:    (error or message)
//	push:                (data)
//	contentdelete:       (id string)
//
// Any other type produces a generic ExtendableEvent.
func NewEvent(typ string, args ...interface{}) Event {
	switch typ {
	case TypeFetch:
		e := &FetchEvent{ExtendableEvent: ExtendableEvent{typ: typ}}
		if len(args) > 0 {
			e.Request, _ = args[0].(*http.Request)
		}
		if len(args) > 1 {
			e.FetchInit, _ = args[1].(FetchInit)
		}
		if e.PreloadResponse == nil {
			e.PreloadResponse = Resolved(nil)
		}
		return e
	case TypeMessage:
		e := &MessageEvent{ExtendableEvent: ExtendableEvent{typ: typ}}
		if len(args) > 0 {
			e.Data = args[0]
		}
		if len(args) > 1 {
			e.MessageInit, _ = args[1].(MessageInit)
		}
		return e
	case TypeError, TypeUnhandledRejection:
		e := &ErrorEvent{ExtendableEvent: ExtendableEvent{typ: typ}, Message: "Error"}
		if len(args) > 0 && args[0] != nil {
			e.Err = asError(args[0])
			e.Message = e.Err.Error()
		}
		return e
	case TypePush:
		e := &PushEvent{ExtendableEvent: ExtendableEvent{typ: typ}}
		if len(args) > 0 {
			e.Data = PushMessageData{value: args[0]}
		}
		return e
	case TypeContentDelete:
		e := &ContentIndexEvent{ExtendableEvent: ExtendableEvent{typ: typ}}
		if len(args) > 0 {
			e.ID = fmt.Sprint(args[0])
		}
		return e
	default:
		return NewExtendableEvent(typ)
	}
}

func asError(value interface{}) error {
	if err, ok := value.(error); ok {
		return err
	}
	return fmt.Errorf("%v", value)
}
