package jsworker

import (
	"net/http"

	"github.com/dop251/goja"
	"github.com/launchdarkly/sw-test-env/cache"
	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/swenv"
)

func (r *runtime) cacheStorageObject() *goja.Object {
	storage := r.scope.Caches
	obj := r.vm.NewObject()
	_ = obj.Set("open", func(call goja.FunctionCall) goja.Value {
		return r.promise(r.cacheObject(storage.Open(call.Argument(0).String())), nil)
	})
	_ = obj.Set("has", func(call goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(storage.Has(call.Argument(0).String())), nil)
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(storage.Delete(call.Argument(0).String())), nil)
	})
	_ = obj.Set("keys", func(goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(storage.Keys()), nil)
	})
	_ = obj.Set("match", func(call goja.FunctionCall) goja.Value {
		res, err := storage.Match(r.requestInfo(call.Argument(0)), r.queryOptions(call.Argument(1)))
		if err != nil {
			return r.promise(nil, err)
		}
		return r.promise(r.responseObject(res), nil)
	})
	return obj
}

func (r *runtime) cacheObject(c *cache.Cache) *goja.Object {
	return r.wrap(c, func(obj *goja.Object) {
		_ = obj.Set("match", func(call goja.FunctionCall) goja.Value {
			res, err := c.Match(r.requestInfo(call.Argument(0)), r.queryOptions(call.Argument(1)))
			if err != nil {
				return r.promise(nil, err)
			}
			return r.promise(r.responseObject(res), nil)
		})
		_ = obj.Set("matchAll", func(call goja.FunctionCall) goja.Value {
			all, err := c.MatchAll(r.requestInfo(call.Argument(0)), r.queryOptions(call.Argument(1)))
			if err != nil {
				return r.promise(nil, err)
			}
			items := make([]interface{}, 0, len(all))
			for _, res := range all {
				items = append(items, res)
			}
			return r.promise(r.toJSList(items), nil)
		})
		_ = obj.Set("keys", func(call goja.FunctionCall) goja.Value {
			keys, err := c.Keys(r.requestInfo(call.Argument(0)), r.queryOptions(call.Argument(1)))
			if err != nil {
				return r.promise(nil, err)
			}
			items := make([]interface{}, 0, len(keys))
			for _, req := range keys {
				items = append(items, req)
			}
			return r.promise(r.toJSList(items), nil)
		})
		_ = obj.Set("add", func(call goja.FunctionCall) goja.Value {
			return r.promise(nil, c.Add(r.ctx, r.requestInfo(call.Argument(0))))
		})
		_ = obj.Set("addAll", func(call goja.FunctionCall) goja.Value {
			exported := r.exportList(call.Argument(0))
			infos := make([]cache.RequestInfo, 0, len(exported))
			for _, info := range exported {
				infos = append(infos, info)
			}
			return r.promise(nil, c.AddAll(r.ctx, infos...))
		})
		_ = obj.Set("put", func(call goja.FunctionCall) goja.Value {
			res, ok := r.export(call.Argument(1)).(*http.Response)
			if !ok {
				panic(r.vm.NewTypeError("Cache.put requires a Response"))
			}
			return r.promise(nil, c.Put(r.requestInfo(call.Argument(0)), res))
		})
		_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
			deleted, err := c.Delete(r.requestInfo(call.Argument(0)), r.queryOptions(call.Argument(1)))
			return r.promise(r.vm.ToValue(deleted), err)
		})
	})
}

func (r *runtime) clientsObject() *goja.Object {
	all := r.scope.Clients
	obj := r.vm.NewObject()
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		c := all.Get(call.Argument(0).String())
		if c == nil {
			return r.promise(nil, nil)
		}
		return r.promise(r.clientObject(c), nil)
	})
	_ = obj.Set("matchAll", func(call goja.FunctionCall) goja.Value {
		var opts clients.MatchOptions
		if o := r.optionsObject(call.Argument(0)); o != nil {
			opts.Type = stringProp(o, "type")
			opts.IncludeUncontrolled = boolProp(o, "includeUncontrolled")
		}
		matched := all.MatchAll(opts)
		items := make([]interface{}, 0, len(matched))
		for _, c := range matched {
			items = append(items, c)
		}
		return r.promise(r.toJSList(items), nil)
	})
	_ = obj.Set("openWindow", func(call goja.FunctionCall) goja.Value {
		return r.promise(r.clientObject(all.OpenWindow(call.Argument(0).String())), nil)
	})
	_ = obj.Set("claim", func(goja.FunctionCall) goja.Value {
		return r.promise(nil, all.Claim())
	})
	return obj
}

func (r *runtime) clientObject(c *clients.Client) *goja.Object {
	return r.wrap(c, func(obj *goja.Object) {
		_ = obj.Set("id", c.ID)
		_ = obj.Set("type", c.Type)
		_ = obj.Set("frameType", c.FrameType)
		r.defineGetter(obj, "url", func() interface{} { return c.URL() })
		r.defineGetter(obj, "focused", func() interface{} { return c.Focused() })
		r.defineGetter(obj, "visibilityState", func() interface{} { return c.VisibilityState() })
		_ = obj.Set("postMessage", r.poster(c.PostMessageContext))
		_ = obj.Set("focus", func(goja.FunctionCall) goja.Value {
			return r.promise(r.clientObject(c.Focus()), nil)
		})
		_ = obj.Set("navigate", func(call goja.FunctionCall) goja.Value {
			return r.promise(r.clientObject(c.Navigate(call.Argument(0).String())), nil)
		})
	})
}

func (r *runtime) portObject(p *clients.MessagePort) *goja.Object {
	return r.wrap(p, func(obj *goja.Object) {
		r.bindTarget(obj, &p.Target, "message", "messageerror")
		_ = obj.Set("postMessage", r.poster(p.PostMessageContext))
		_ = obj.Set("start", func(goja.FunctionCall) goja.Value {
			p.Start()
			return goja.Undefined()
		})
		_ = obj.Set("close", func(goja.FunctionCall) goja.Value {
			p.Close()
			return goja.Undefined()
		})
	})
}

func (r *runtime) workerObject(w *swenv.Worker) *goja.Object {
	return r.wrap(w, func(obj *goja.Object) {
		_ = obj.Set("scriptURL", w.ScriptURL)
		r.defineGetter(obj, "state", func() interface{} { return string(w.State()) })
		_ = obj.Set("postMessage", r.poster(w.PostMessageContext))
	})
}

func (r *runtime) registrationObject(reg *swenv.Registration) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("scope", reg.Scope)
	r.defineGetter(obj, "installing", func() interface{} { return reg.Installing() })
	r.defineGetter(obj, "waiting", func() interface{} { return reg.Waiting() })
	r.defineGetter(obj, "active", func() interface{} { return reg.Active() })
	_ = obj.Set("unregister", func(goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(reg.Unregister()), nil)
	})
	_ = obj.Set("update", func(goja.FunctionCall) goja.Value {
		return r.promise(nil, reg.Update())
	})
	_ = obj.Set("index", r.contentIndexObject(reg.Index))
	_ = obj.Set("navigationPreload", r.navigationPreloadObject(reg.NavigationPreload))
	_ = obj.Set("pushManager", r.pushManagerObject(reg.PushManager))
	r.bindTarget(obj, &reg.Target, "updatefound")
	return obj
}

func (r *runtime) contentIndexObject(index *swenv.ContentIndex) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("add", func(call goja.FunctionCall) goja.Value {
		var d swenv.ContentDescription
		if err := r.vm.ExportTo(call.Argument(0), &d); err != nil {
			return r.promise(nil, err)
		}
		index.Add(d)
		return r.promise(nil, nil)
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		index.Delete(call.Argument(0).String())
		return r.promise(nil, nil)
	})
	_ = obj.Set("getAll", func(goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(index.GetAll()), nil)
	})
	return obj
}

func (r *runtime) navigationPreloadObject(m *swenv.NavigationPreloadManager) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("enable", func(goja.FunctionCall) goja.Value { return r.promise(nil, m.Enable()) })
	_ = obj.Set("disable", func(goja.FunctionCall) goja.Value { return r.promise(nil, m.Disable()) })
	_ = obj.Set("setHeaderValue", func(call goja.FunctionCall) goja.Value {
		return r.promise(nil, m.SetHeaderValue(call.Argument(0).String()))
	})
	_ = obj.Set("getState", func(goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(m.GetState()), nil)
	})
	return obj
}

func (r *runtime) pushManagerObject(m *swenv.PushManager) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("getSubscription", func(goja.FunctionCall) goja.Value {
		return r.promise(r.subscriptionObject(m.GetSubscription()), nil)
	})
	_ = obj.Set("subscribe", func(call goja.FunctionCall) goja.Value {
		var opts swenv.PushSubscriptionOptions
		if o := r.optionsObject(call.Argument(0)); o != nil {
			if err := r.vm.ExportTo(o, &opts); err != nil {
				return r.promise(nil, err)
			}
		}
		return r.promise(r.subscriptionObject(m.Subscribe(opts)), nil)
	})
	_ = obj.Set("permissionState", func(goja.FunctionCall) goja.Value {
		return r.promise(r.vm.ToValue(m.PermissionState()), nil)
	})
	return obj
}

func (r *runtime) subscriptionObject(sub *swenv.PushSubscription) goja.Value {
	if sub == nil {
		return goja.Null()
	}
	return r.wrap(sub, func(obj *goja.Object) {
		var expiration interface{}
		if sub.ExpirationTime != nil {
			expiration = *sub.ExpirationTime
		}
		_ = obj.Set("endpoint", sub.Endpoint)
		_ = obj.Set("expirationTime", expiration)
		_ = obj.Set("options", r.vm.ToValue(sub.Options))
		_ = obj.Set("getKey", func(call goja.FunctionCall) goja.Value {
			key := sub.GetKey(call.Argument(0).String())
			if key == nil {
				return goja.Null()
			}
			return r.vm.ToValue(r.vm.NewArrayBuffer(key))
		})
		_ = obj.Set("unsubscribe", func(goja.FunctionCall) goja.Value {
			return r.promise(r.vm.ToValue(sub.Unsubscribe()), nil)
		})
	})
}
