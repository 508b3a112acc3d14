package jsworker

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/launchdarkly/sw-test-env/cache"
)

func (r *runtime) fetch(call goja.FunctionCall) goja.Value {
	req, err := r.buildRequest(call.Argument(0), call.Argument(1))
	if err != nil {
		return r.promise(nil, err)
	}
	res, err := r.scope.Fetch(r.ctx, req)
	if err != nil {
		return r.promise(nil, err)
	}
	return r.promise(r.responseObject(res), nil)
}

// buildRequest resolves input against the origin and applies init's method, headers and body.
func (r *runtime) buildRequest(input, init goja.Value) (*http.Request, error) {
	req, err := cache.NormalizeRequest(r.origin, r.requestInfo(input))
	if err != nil {
		return nil, err
	}
	opts := r.optionsObject(init)
	if opts == nil {
		return req, nil
	}
	req = req.Clone(r.ctx)
	if method := stringProp(opts, "method"); method != "" {
		req.Method = strings.ToUpper(method)
	}
	if headers := opts.Get("headers"); headers != nil {
		r.copyHeaders(req.Header, headers)
	}
	if body := opts.Get("body"); body != nil && !goja.IsUndefined(body) && !goja.IsNull(body) {
		s := body.String()
		req.Body = io.NopCloser(strings.NewReader(s))
		req.ContentLength = int64(len(s))
	}
	return req, nil
}

func (r *runtime) newRequestObject(call goja.ConstructorCall) *goja.Object {
	req, err := r.buildRequest(call.Argument(0), call.Argument(1))
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}
	return r.requestObject(req).(*goja.Object)
}

func (r *runtime) requestObject(req *http.Request) goja.Value {
	if req == nil {
		return goja.Null()
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	return r.wrap(req, func(obj *goja.Object) {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		_ = obj.Set("url", req.URL.String())
		_ = obj.Set("method", method)
		_ = obj.Set("headers", r.headersObject(req.Header))
		_ = obj.Set("mode", "same-origin")
		_ = obj.Set("clone", func(goja.FunctionCall) goja.Value {
			return r.requestObject(req.Clone(r.ctx))
		})
		_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
			data, err := readRequestBody(req)
			return r.promise(r.vm.ToValue(string(data)), err)
		})
	})
}

func (r *runtime) newResponseObject(call goja.ConstructorCall) *goja.Object {
	body := ""
	if b := call.Argument(0); !goja.IsUndefined(b) && !goja.IsNull(b) {
		body = b.String()
	}
	res := &http.Response{
		StatusCode:    http.StatusOK,
		Header:        make(http.Header),
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
	statusText := ""
	if opts := r.optionsObject(call.Argument(1)); opts != nil {
		if status := opts.Get("status"); status != nil && !goja.IsUndefined(status) {
			res.StatusCode = int(status.ToInteger())
		}
		statusText = stringProp(opts, "statusText")
		if headers := opts.Get("headers"); headers != nil {
			r.copyHeaders(res.Header, headers)
		}
	}
	if statusText == "" {
		statusText = http.StatusText(res.StatusCode)
	}
	res.Status = fmt.Sprintf("%d %s", res.StatusCode, statusText)
	return r.responseObject(res).(*goja.Object)
}

func (r *runtime) responseObject(res *http.Response) goja.Value {
	if res == nil {
		return goja.Undefined()
	}
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	return r.wrap(res, func(obj *goja.Object) {
		url := ""
		if res.Request != nil && res.Request.URL != nil {
			url = res.Request.URL.String()
		}
		_ = obj.Set("status", res.StatusCode)
		_ = obj.Set("statusText", statusText(res))
		_ = obj.Set("ok", res.StatusCode >= 200 && res.StatusCode < 300)
		_ = obj.Set("url", url)
		_ = obj.Set("headers", r.headersObject(res.Header))
		_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
			data, err := readResponseBody(res)
			return r.promise(r.vm.ToValue(string(data)), err)
		})
		_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
			data, err := readResponseBody(res)
			if err != nil {
				return r.promise(nil, err)
			}
			v, err := r.parseJSON(string(data))
			return r.promise(v, err)
		})
		_ = obj.Set("clone", func(goja.FunctionCall) goja.Value {
			clone, err := cloneResponse(res)
			if err != nil {
				r.throw(err)
			}
			return r.responseObject(clone)
		})
	})
}

func (r *runtime) parseJSON(s string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse is not available")
	}
	v, err := parse(goja.Undefined(), r.vm.ToValue(s))
	return v, r.wrapError(err)
}

func statusText(res *http.Response) string {
	prefix := strconv.Itoa(res.StatusCode) + " "
	if strings.HasPrefix(res.Status, prefix) {
		return strings.TrimPrefix(res.Status, prefix)
	}
	return http.StatusText(res.StatusCode)
}

// readResponseBody reads the whole body and leaves a fresh reader in its place, so bodies of
// cached responses can be read any number of times.
func readResponseBody(res *http.Response) ([]byte, error) {
	if res.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(data))
	return data, err
}

func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, err
}

func cloneResponse(res *http.Response) (*http.Response, error) {
	data, err := readResponseBody(res)
	if err != nil {
		return nil, err
	}
	clone := *res
	clone.Header = res.Header.Clone()
	clone.Body = io.NopCloser(bytes.NewReader(data))
	return &clone, nil
}

func (r *runtime) newHeadersObject(call goja.ConstructorCall) *goja.Object {
	h := make(http.Header)
	if init := call.Argument(0); init != nil {
		r.copyHeaders(h, init)
	}
	return r.headersObject(h)
}

// headersObject is built fresh on every call; http.Header is a map and cannot key the wrapper
// cache.
func (r *runtime) headersObject(h http.Header) *goja.Object {
	obj := r.vm.NewObject()
	r.setNative(obj, h)
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		values := h.Values(call.Argument(0).String())
		if len(values) == 0 {
			return goja.Null()
		}
		return r.vm.ToValue(strings.Join(values, ", "))
	})
	_ = obj.Set("has", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(len(h.Values(call.Argument(0).String())) > 0)
	})
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		h.Set(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("append", func(call goja.FunctionCall) goja.Value {
		h.Add(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		h.Del(call.Argument(0).String())
		return goja.Undefined()
	})
	return obj
}

// copyHeaders accepts a Headers object or a plain object of name/value pairs.
func (r *runtime) copyHeaders(dst http.Header, v goja.Value) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	if src, ok := r.export(v).(http.Header); ok {
		for name, values := range src {
			dst[name] = append([]string(nil), values...)
		}
		return
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return
	}
	for _, name := range obj.Keys() {
		dst.Set(name, obj.Get(name).String())
	}
}
