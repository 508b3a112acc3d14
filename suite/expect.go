package suite

import (
	"io"
	"net/http"

	"github.com/google/go-cmp/cmp"
	"github.com/launchdarkly/sw-test-env/suitedef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func (t *T) check(where string, result interface{}, expect suitedef.Expectation) {
	if expect.State != "" {
		require.NotNil(t, t.worker, "%s: no worker has been registered", where)
		assert.Equal(t, expect.State, string(t.worker.State()), "%s: worker state", where)
	}
	if expect.Controlled != nil {
		assert.Equal(t, *expect.Controlled, t.container.Controller() != nil, "%s: page controlled", where)
	}
	if expect.Status.IsDefined() || expect.Body.IsDefined() {
		t.checkResponse(where, result, expect)
	} else if !expect.Result.IsNull() {
		t.checkValue(where+": result", expect.Result, result)
	}
	if expect.Messages != nil {
		t.checkMessages(where, expect.Messages, t.takeMessages())
	}
	if len(expect.Cached) != 0 {
		t.checkCaches(where, expect.Cached)
	}
	if len(expect.Values) != 0 {
		t.checkValues(where, expect.Values)
	}
}

func (t *T) checkResponse(where string, result interface{}, expect suitedef.Expectation) {
	res, ok := result.(*http.Response)
	require.True(t, ok && res != nil, "%s: expected a response, got %T", where, result)
	if expect.Status.IsDefined() {
		assert.Equal(t, expect.Status.IntValue(), res.StatusCode, "%s: status", where)
	}
	if expect.Body.IsDefined() {
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err, where)
		assert.Equal(t, expect.Body.StringValue(), string(body), "%s: body", where)
	}
}

func (t *T) checkValue(what string, want ldvalue.Value, got interface{}) {
	actual := ldvalue.CopyArbitraryValue(got)
	if !want.Equal(actual) {
		t.Errorf("%s mismatch (-want +got):\n%s", what, cmp.Diff(want.AsArbitraryValue(), actual.AsArbitraryValue()))
	}
}

func (t *T) checkMessages(where string, want []ldvalue.Value, got []interface{}) {
	wantList := make([]interface{}, 0, len(want))
	for _, v := range want {
		wantList = append(wantList, v.AsArbitraryValue())
	}
	gotList := make([]interface{}, 0, len(got))
	for _, v := range got {
		gotList = append(gotList, ldvalue.CopyArbitraryValue(v).AsArbitraryValue())
	}
	if diff := cmp.Diff(wantList, gotList); diff != "" {
		t.Errorf("%s: messages received by the page (-want +got):\n%s", where, diff)
	}
}

func (t *T) checkCaches(where string, want map[string][]string) {
	scope := t.container.Scope()
	require.NotNil(t, scope, "%s: page is not attached to a worker scope", where)
	for name, paths := range want {
		if !scope.Caches.Has(name) {
			t.Errorf("%s: cache %q does not exist", where, name)
			continue
		}
		keys, err := scope.Caches.Open(name).Keys(nil)
		require.NoError(t, err, where)
		got := make([]string, 0, len(keys))
		for _, k := range keys {
			got = append(got, k.URL.Path)
		}
		if paths == nil {
			paths = []string{}
		}
		if diff := cmp.Diff(paths, got); diff != "" {
			t.Errorf("%s: keys of cache %q (-want +got):\n%s", where, name, diff)
		}
	}
}

func (t *T) checkValues(where string, want map[string]ldvalue.Value) {
	scope := t.container.Scope()
	require.NotNil(t, scope, "%s: page is not attached to a worker scope", where)
	for name, value := range want {
		got, ok := scope.Get(name)
		if !ok {
			t.Errorf("%s: global %q is not defined", where, name)
			continue
		}
		t.checkValue(where+": global "+name, value, got)
	}
}
