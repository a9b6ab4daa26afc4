package replay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	server := map[string]any{
		"name":    "Acme",
		"address": map[string]any{"city": "Leeds", "zip": "LS1"},
		"tags":    []any{"a", "b"},
	}
	client := map[string]any{
		"address": map[string]any{"zip": "LS2"},
		"tags":    []any{"c"},
		"phone":   "555",
	}

	got := Merge(server, client)
	assert.Equal(t, map[string]any{
		"name":    "Acme",
		"address": map[string]any{"city": "Leeds", "zip": "LS2"},
		"tags":    []any{"c"},
		"phone":   "555",
	}, got)
	assert.Equal(t, "LS1", server["address"].(map[string]any)["zip"], "server document must not change")
}

func TestMergeScalarOverObject(t *testing.T) {
	got := Merge(map[string]any{"address": map[string]any{"city": "Leeds"}}, map[string]any{"address": nil})
	assert.Equal(t, map[string]any{"address": nil}, got)
}

func TestDecodeObject(t *testing.T) {
	doc, err := DecodeObject([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc["a"])

	for _, raw := range []string{`[1]`, `null`, `"x"`, ``} {
		_, err := DecodeObject([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestVersion(t *testing.T) {
	v, ok := Version(map[string]any{"updatedTimestamp": "2026-03-10T11:30:00.123Z"})
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 30, 0, 123000000, time.UTC), v.UTC())

	_, ok = Version(map[string]any{"updatedAt": "2026-03-10T11:30:00Z"})
	assert.True(t, ok)
	_, ok = Version(map[string]any{"updatedTimestamp": 12})
	assert.False(t, ok)
}

func TestGatewayDo(t *testing.T) {
	var (
		gotAuth, gotType, gotPath string
		gotBody                   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Invoice is no longer draft"}`))
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL+"/", time.Second)
	resp, err := gw.Do(context.Background(), "tok", http.MethodPatch, "/v1/invoices/inv-1", []byte(`{"notes":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.False(t, resp.OK())
	assert.JSONEq(t, `{"message":"Invoice is no longer draft"}`, string(resp.Body))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "/v1/invoices/inv-1", gotPath)
	assert.Equal(t, `{"notes":"x"}`, string(gotBody))
}

func TestGatewayTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGateway(url, time.Second).Do(context.Background(), "", http.MethodGet, "/v1/invoices", nil)
	assert.Error(t, err)
}
