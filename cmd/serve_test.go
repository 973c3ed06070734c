//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incident-evidence/internal/httpapi"
)

func newTestServer(t *testing.T) *httpapi.Server {
	cfg = testConfig()
	e, err := buildEnv(context.Background())
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return &httpapi.Server{
		Coordinator:   e.coordinator,
		Store:         e.store,
		ExtractorKind: e.extractorKind,
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestBuildEnv_ServerHandlesHealthRoute(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "deterministic", body["extractor"])
}

func TestBuildEnv_ServerHandlesChunkAndIncidentRoutes(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	chunkBody, _ := json.Marshal(map[string]any{
		"text":        "There's a fire on the third floor.",
		"incident_id": "incident-cmd-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/chunk", bytes.NewReader(chunkBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/incident/incident-cmd-1", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBuildEnv_ServerRejectsUnknownRoute(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
