package jsworker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/events"
)

// scopeEventTypes get an on<type> handler property on the global object.
var scopeEventTypes = []string{
	events.TypeInstall,
	events.TypeActivate,
	events.TypeFetch,
	events.TypeMessage,
	"messageerror",
	events.TypeError,
	events.TypeUnhandledRejection,
	events.TypePush,
	"pushsubscriptionchange",
	"notificationclick",
	"notificationclose",
	"sync",
	"periodicsync",
	events.TypeContentDelete,
}

func (r *runtime) bindGlobals() error {
	global := r.vm.GlobalObject()
	globals := map[string]interface{}{
		"self":           global,
		"origin":         r.scope.Origin,
		"location":       r.locationObject(),
		"caches":         r.cacheStorageObject(),
		"clients":        r.clientsObject(),
		"registration":   r.registrationObject(r.scope.Registration),
		"fetch":          r.fetch,
		"skipWaiting":    r.skipWaiting,
		"importScripts":  r.importScripts,
		"setTimeout":     r.setTimeout,
		"clearTimeout":   r.clearTimeout,
		"console":        r.consoleObject(),
		"Request":        r.newRequestObject,
		"Response":       r.newResponseObject,
		"Headers":        r.newHeadersObject,
		"MessageChannel": r.newMessageChannel,
	}
	for name, v := range globals {
		if err := global.Set(name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	r.bindTarget(global, &r.scope.Target, scopeEventTypes...)
	return nil
}

type jsListener struct {
	typ    string
	fn     goja.Value
	remove func()
}

// jsTarget tracks the JS functions registered on an events.Target through its JS object.
type jsTarget struct {
	target    *events.Target
	handlers  map[string]goja.Value
	listeners []jsListener
}

// bindTarget gives obj addEventListener, removeEventListener and an on<type> property per
// handler type, all backed by target.
func (r *runtime) bindTarget(obj *goja.Object, target *events.Target, handlerTypes ...string) {
	t := &jsTarget{target: target, handlers: make(map[string]goja.Value)}
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ, fnValue := call.Argument(0).String(), call.Argument(1)
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			return goja.Undefined()
		}
		for _, l := range t.listeners {
			if l.typ == typ && l.fn.StrictEquals(fnValue) {
				return goja.Undefined()
			}
		}
		remove := target.AddEventListener(typ, r.listener(fn, obj))
		t.listeners = append(t.listeners, jsListener{typ: typ, fn: fnValue, remove: remove})
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		typ, fnValue := call.Argument(0).String(), call.Argument(1)
		for i, l := range t.listeners {
			if l.typ == typ && l.fn.StrictEquals(fnValue) {
				l.remove()
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				break
			}
		}
		return goja.Undefined()
	})
	for _, typ := range handlerTypes {
		r.defineHandler(obj, t, typ)
	}
}

func (r *runtime) defineHandler(obj *goja.Object, t *jsTarget, typ string) {
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		if v, ok := t.handlers[typ]; ok {
			return v
		}
		return goja.Null()
	})
	setter := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		fn, ok := goja.AssertFunction(v)
		if !ok {
			delete(t.handlers, typ)
			t.target.SetOn(typ, nil)
			return goja.Undefined()
		}
		t.handlers[typ] = v
		t.target.SetOn(typ, r.listener(fn, obj))
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("on"+typ, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// listener adapts a JS function to an events.Listener. The call and any timers it needs run
// under the runtime lock unless the event was dispatched from inside this runtime.
func (r *runtime) listener(fn goja.Callable, this goja.Value) events.Listener {
	return func(e events.Event) error {
		return r.run(e.Context(), func() error {
			_, err := fn(this, r.eventObject(e))
			return r.wrapError(err)
		})
	}
}

func (r *runtime) eventObject(e events.Event) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("type", e.Type())
	_ = obj.Set("waitUntil", func(call goja.FunctionCall) goja.Value {
		e.WaitUntil(r.toPromise(call.Argument(0)))
		return goja.Undefined()
	})
	switch ev := e.(type) {
	case *events.FetchEvent:
		_ = obj.Set("request", r.requestObject(ev.Request))
		_ = obj.Set("clientId", ev.ClientID)
		_ = obj.Set("resultingClientId", ev.ResultingClientID)
		_ = obj.Set("replacesClientId", ev.ReplacesClientID)
		_ = obj.Set("isReload", ev.IsReload)
		_ = obj.Set("preloadResponse", r.promise(nil, nil))
		_ = obj.Set("respondWith", func(call goja.FunctionCall) goja.Value {
			ev.RespondWith(r.toPromise(call.Argument(0)))
			return goja.Undefined()
		})
	case *events.MessageEvent:
		_ = obj.Set("data", r.toJS(ev.Data))
		_ = obj.Set("origin", ev.Origin)
		_ = obj.Set("lastEventId", ev.LastEventID)
		_ = obj.Set("source", r.toJS(ev.Source))
		ports := make([]interface{}, 0, len(ev.Ports))
		for _, p := range ev.Ports {
			ports = append(ports, p)
		}
		_ = obj.Set("ports", r.toJSList(ports))
	case *events.ErrorEvent:
		_ = obj.Set("message", ev.Message)
		var reason goja.Value = goja.Undefined()
		if ev.Err != nil {
			reason = r.vm.NewGoError(ev.Err)
		}
		if ev.Type() == events.TypeUnhandledRejection {
			_ = obj.Set("reason", reason)
		} else {
			_ = obj.Set("error", reason)
		}
	case *events.PushEvent:
		data := r.vm.NewObject()
		_ = data.Set("json", func(goja.FunctionCall) goja.Value { return r.toJS(ev.Data.JSON()) })
		_ = data.Set("text", func(goja.FunctionCall) goja.Value { return r.vm.ToValue(ev.Data.Text()) })
		_ = obj.Set("data", data)
	case *events.ContentIndexEvent:
		_ = obj.Set("id", ev.ID)
	}
	return obj
}

func (r *runtime) skipWaiting(goja.FunctionCall) goja.Value {
	return r.promise(nil, r.scope.SkipWaiting())
}

// importScripts runs each script, given relative to the webroot, in the global scope.
func (r *runtime) importScripts(call goja.FunctionCall) goja.Value {
	for _, arg := range call.Arguments {
		rel := strings.TrimPrefix(arg.String(), "/")
		src, err := os.ReadFile(filepath.Join(r.webroot, filepath.FromSlash(rel)))
		if err != nil {
			r.throw(fmt.Errorf("error importing script %q: %w", rel, err))
		}
		if _, err := r.vm.RunScript(rel, string(src)); err != nil {
			r.throw(err)
		}
	}
	return goja.Undefined()
}

func (r *runtime) locationObject() *goja.Object {
	loc := r.scope.Location
	obj := r.vm.NewObject()
	port := loc.Port()
	props := map[string]string{
		"href":     loc.String(),
		"origin":   r.scope.Origin,
		"protocol": loc.Scheme + ":",
		"host":     loc.Host,
		"hostname": loc.Hostname(),
		"port":     port,
		"pathname": loc.EscapedPath(),
		"search":   prefixed("?", loc.RawQuery),
		"hash":     prefixed("#", loc.Fragment),
	}
	for k, v := range props {
		_ = obj.Set(k, v)
	}
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value { return r.vm.ToValue(loc.String()) })
	return obj
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}

func (r *runtime) consoleObject() *goja.Object {
	logAt := func(logf func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			logf("[console] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	obj := r.vm.NewObject()
	_ = obj.Set("debug", logAt(r.loggers.Debugf))
	_ = obj.Set("log", logAt(r.loggers.Infof))
	_ = obj.Set("info", logAt(r.loggers.Infof))
	_ = obj.Set("warn", logAt(r.loggers.Warnf))
	_ = obj.Set("error", logAt(r.loggers.Errorf))
	return obj
}

func (r *runtime) newMessageChannel(call goja.ConstructorCall) *goja.Object {
	ch := clients.NewMessageChannel()
	_ = call.This.Set("port1", r.portObject(ch.Port1))
	_ = call.This.Set("port2", r.portObject(ch.Port2))
	return nil
}
