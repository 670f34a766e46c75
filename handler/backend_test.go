package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyzer/paykit/gateway"
	_ "github.com/teyzer/paykit/gateway/dummy"
	"github.com/teyzer/paykit/infra/config"
	"github.com/teyzer/paykit/infra/response"
)

func newBackendRouter(t *testing.T) (chi.Router, *gateway.Service, *config.Store) {
	t.Helper()
	service := gateway.NewService()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "paykit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backends := NewBackendHandler(service, store)
	r := chi.NewRouter()
	r.Get("/backends", backends.ListBackends)
	r.Post("/backends/{backend}", backends.ConfigureBackend)
	r.Delete("/backends/{backend}", backends.RemoveBackend)
	return r, service, store
}

func TestListBackends(t *testing.T) {
	r, service, _ := newBackendRouter(t)
	require.NoError(t, service.Configure("dummy", map[string]string{"origin": "shop"}))

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("GET", "/backends", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	backends := resp.Data.([]any)
	require.NotEmpty(t, backends)

	var found bool
	for _, raw := range backends {
		entry := raw.(map[string]any)
		if entry["kind"] == "dummy" {
			found = true
			assert.True(t, entry["configured"].(bool))
			assert.True(t, entry["has_free_transaction_id"].(bool))
			assert.NotEmpty(t, entry["parameters"])
		}
	}
	assert.True(t, found)
}

func TestConfigureBackend(t *testing.T) {
	r, service, store := newBackendRouter(t)

	req := httptest.NewRequest("POST", "/backends/dummy",
		strings.NewReader(`{"origin": "shop"}`))
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	// the service holds a live client and the options are persisted
	_, err := service.Client("dummy")
	assert.NoError(t, err)
	stored, err := store.Get("dummy", "")
	require.NoError(t, err)
	assert.Equal(t, "shop", stored["origin"])
}

func TestConfigureBackend_RejectsUnknownOption(t *testing.T) {
	r, _, _ := newBackendRouter(t)

	req := httptest.NewRequest("POST", "/backends/dummy",
		strings.NewReader(`{"no_such_option": "x"}`))
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestConfigureBackend_UnknownKind(t *testing.T) {
	r, _, _ := newBackendRouter(t)

	req := httptest.NewRequest("POST", "/backends/nosuch", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRemoveBackend(t *testing.T) {
	r, service, store := newBackendRouter(t)
	require.NoError(t, service.Configure("dummy", map[string]string{"origin": "shop"}))
	require.NoError(t, store.Save("dummy", "", map[string]string{"origin": "shop"}))

	req := httptest.NewRequest("DELETE", "/backends/dummy", nil)
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	_, err := service.Client("dummy")
	assert.Error(t, err)
	_, err = store.Get("dummy", "")
	assert.Error(t, err)
}
