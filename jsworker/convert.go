package jsworker

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dop251/goja"
	"github.com/launchdarkly/sw-test-env/cache"
	"github.com/launchdarkly/sw-test-env/clients"
	"github.com/launchdarkly/sw-test-env/swenv"
)

// nativeKey names the hidden property linking a JS wrapper to the Go value behind it.
const nativeKey = "__native"

// wrap returns the JS object for native, building it on first use so that the same Go value
// always maps to the same object.
func (r *runtime) wrap(native interface{}, build func(obj *goja.Object)) *goja.Object {
	if obj, ok := r.wrappers[native]; ok {
		return obj
	}
	obj := r.vm.NewObject()
	r.setNative(obj, native)
	r.wrappers[native] = obj
	build(obj)
	return obj
}

func (r *runtime) setNative(obj *goja.Object, native interface{}) {
	_ = obj.DefineDataProperty(nativeKey, r.vm.ToValue(native), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// export converts a JS value for Go. Wrapper objects give back their Go value.
func (r *runtime) export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if native := obj.Get(nativeKey); native != nil {
			return native.Export()
		}
	}
	return v.Export()
}

// exportList converts an array-like value element by element. Undefined gives nil.
func (r *runtime) exportList(v goja.Value) []interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return []interface{}{r.export(v)}
	}
	n := obj.Get("length")
	if n == nil || goja.IsUndefined(n) {
		return []interface{}{r.export(v)}
	}
	ret := make([]interface{}, 0, n.ToInteger())
	for i := int64(0); i < n.ToInteger(); i++ {
		ret = append(ret, r.export(obj.Get(strconv.FormatInt(i, 10))))
	}
	return ret
}

// toJS converts a Go value for the script, using the worker API wrappers where one exists.
func (r *runtime) toJS(v interface{}) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case *http.Request:
		return r.requestObject(x)
	case *http.Response:
		return r.responseObject(x)
	case *clients.Client:
		if x == nil {
			return goja.Null()
		}
		return r.clientObject(x)
	case *clients.MessagePort:
		if x == nil {
			return goja.Null()
		}
		return r.portObject(x)
	case *swenv.Worker:
		if x == nil {
			return goja.Null()
		}
		return r.workerObject(x)
	case *cache.Cache:
		return r.cacheObject(x)
	case error:
		return r.vm.NewGoError(x)
	}
	return r.vm.ToValue(v)
}

func (r *runtime) toJSList(items []interface{}) goja.Value {
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		values = append(values, r.toJS(item))
	}
	return r.vm.NewArray(values...)
}

// requestInfo accepts a URL string or a Request object.
func (r *runtime) requestInfo(v goja.Value) cache.RequestInfo {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if req, ok := r.export(v).(*http.Request); ok {
		return req
	}
	return v.String()
}

func (r *runtime) queryOptions(v goja.Value) cache.QueryOptions {
	obj := r.optionsObject(v)
	if obj == nil {
		return cache.QueryOptions{}
	}
	return cache.QueryOptions{
		IgnoreSearch: boolProp(obj, "ignoreSearch"),
		IgnoreMethod: boolProp(obj, "ignoreMethod"),
		IgnoreVary:   boolProp(obj, "ignoreVary"),
		CacheName:    stringProp(obj, "cacheName"),
	}
}

func (r *runtime) optionsObject(v goja.Value) *goja.Object {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return obj
}

func boolProp(obj *goja.Object, name string) bool {
	v := obj.Get(name)
	return v != nil && v.ToBoolean()
}

func stringProp(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// defineGetter adds a read-only accessor, for properties backed by state that changes.
func (r *runtime) defineGetter(obj *goja.Object, name string, get func() interface{}) {
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.toJS(get()) })
	_ = obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// poster adapts a PostMessageContext method to a JS postMessage(message, transfer) function.
// Listeners reached from it may post back into this runtime with any context.
func (r *runtime) poster(post func(ctx context.Context, message interface{}, transfer ...interface{}) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		message, transfer := r.export(call.Argument(0)), r.exportList(call.Argument(1))
		ctx := r.ctx
		if err := r.callout(func() error { return post(ctx, message, transfer...) }); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	}
}
