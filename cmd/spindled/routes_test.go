package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spiritengine/spindle/internal/config"
	"github.com/spiritengine/spindle/internal/facade"
	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/spindlelog"
	"github.com/spiritengine/spindle/internal/spool"
	"github.com/spiritengine/spindle/internal/supervisor"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := spool.New(t.TempDir())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	sup := supervisor.New(store, spindlelog.NewDiscard())
	shards := shard.NewManager(t.TempDir())
	cfg := &config.Config{MaxConcurrent: 5}
	f := facade.New(store, sup, shards, nil, cfg, t.TempDir())

	router := buildRouter(f)
	return httptest.NewServer(router)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestSpinEndpointRejectsMissingWorkingDir(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	payload, _ := json.Marshal(map[string]string{"prompt": "hi"})
	resp, err := http.Post(srv.URL+"/v1/spin", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /v1/spin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSpoolsEndpointEmpty(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/spools")
	if err != nil {
		t.Fatalf("GET /v1/spools: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("spools = %v, want empty", body)
	}
}

func TestUnspoolEndpointNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/unspool/nosuchid")
	if err != nil {
		t.Fatalf("GET /v1/unspool: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
