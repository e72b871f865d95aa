package jsonrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, mux *Mux, body Request) *Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestMux_DispatchesRegisteredMethod(t *testing.T) {
	mux := NewPlaneMux("cluster")
	mux.Handle("ping", func(params json.RawMessage) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})

	resp := post(t, mux, Request{JSONRPC: "2.0", Method: "ping", ID: 1})
	require.Nil(t, resp.Error)

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "ok", result["pong"])
}

func TestMux_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	mux := NewPlaneMux("external")
	resp := post(t, mux, Request{JSONRPC: "2.0", Method: "missing", ID: 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestMux_HandlerErrorReturnsApplicationError(t *testing.T) {
	mux := NewPlaneMux("external")
	mux.Handle("boom", func(params json.RawMessage) (interface{}, error) {
		return nil, assert.AnError
	})

	resp := post(t, mux, Request{JSONRPC: "2.0", Method: "boom", ID: 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeApplicationErr, resp.Error.Code)
}

func TestMux_MalformedBodyReturnsParseError(t *testing.T) {
	mux := NewPlaneMux("external")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("not json")))
	mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestMux_MergeOverwritesAndAdds(t *testing.T) {
	a := NewPlaneMux("cluster")
	a.Handle("shared", func(params json.RawMessage) (interface{}, error) { return "a", nil })

	b := NewPlaneMux("external")
	b.Handle("shared", func(params json.RawMessage) (interface{}, error) { return "b", nil })
	b.Handle("only_b", func(params json.RawMessage) (interface{}, error) { return "b-only", nil })

	a.Merge(b)

	resp := post(t, a, Request{JSONRPC: "2.0", Method: "shared", ID: 1})
	var shared string
	require.NoError(t, json.Unmarshal(resp.Result, &shared))
	assert.Equal(t, "b", shared)

	resp = post(t, a, Request{JSONRPC: "2.0", Method: "only_b", ID: 1})
	require.Nil(t, resp.Error)
}
