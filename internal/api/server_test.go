package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/primisapp/primis-backend/internal/auth"
	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
	"github.com/primisapp/primis-backend/internal/infrastructure/config"
	"github.com/primisapp/primis-backend/internal/infrastructure/database"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
	"github.com/primisapp/primis-backend/internal/user"
	_ "github.com/primisapp/primis-backend/migrations" // register embedded schema
)

const testJWTSecret = "test-secret-0123456789abcdefghijklmn"

type testEnv struct {
	server  *Server
	ts      *httptest.Server
	devices device.Repository
	users   user.Repository
	hub     *broadcast.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	logger := logging.Default()
	hub := broadcast.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	cfg := &config.Config{
		API: config.APIConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		WebSocket: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 60},
		},
	}

	devices := device.NewSQLiteRepository(db)
	users := user.NewSQLiteRepository(db)

	srv, err := New(Deps{
		Config:  cfg,
		Logger:  logger,
		Devices: devices,
		Users:   users,
		Tokens:  auth.NewTokenIssuer(testJWTSecret, 60),
		Hub:     hub,
		DB:      db,
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:  srv,
		ts:      ts,
		devices: devices,
		users:   users,
		hub:     hub,
	}
}

// request performs an HTTP call against the test server and decodes the
// JSON response body into out (if non-nil).
func (e *testEnv) request(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}

	return resp
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with empty deps error = nil, want error")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]any
	resp := env.request(t, http.MethodGet, "/api/v1/health", "", nil, &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("health status field = %v, want ok", body["status"])
	}
	if body["mqtt"] != "disabled" {
		t.Errorf("health mqtt field = %v, want disabled", body["mqtt"])
	}
}
