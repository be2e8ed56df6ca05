package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/api/handlers"
	"github.com/to-ny/medsearch-sub001/internal/api/routes"
	"github.com/to-ny/medsearch-sub001/internal/application/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	index, err := snapshot.Load("../../adapters/snapshot/testdata/sample.json")
	require.NoError(t, err)

	engine := services.NewSearchEngine(index, services.DefaultSearchEngineConfig())
	router := routes.NewRouter(
		handlers.NewSearchHandler(engine, 100),
		handlers.NewHealthHandler(index),
		nil,
		nil,
	)

	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]int{
		"/health":                   http.StatusOK,
		"/ready":                    http.StatusOK,
		"/api/search?q=paracetamol": http.StatusOK,
		"/api/search?q=pa":          http.StatusBadRequest,
		"/api/unknown":              http.StatusNotFound,
	}
	for path, status := range cases {
		t.Run(path, func(t *testing.T) {
			resp := get(t, srv.URL+path)
			assert.Equal(t, status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRouter_RejectsOtherMethods(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/search", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
