package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pmills/gamewatch/internal/auth"
	"github.com/pmills/gamewatch/internal/collector"
	"github.com/pmills/gamewatch/internal/config"
	"github.com/pmills/gamewatch/internal/storage"
)

func newTestRouter(t *testing.T) (*Router, *storage.Store) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hash, err := auth.HashPassword("operator-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	monitor := collector.NewMonitor(&config.Config{
		CrashDetector: config.CrashDetectorConfig{Threshold: 3},
	}, store)
	authService := auth.NewService("test-secret", time.Hour)

	return NewRouter(store, monitor, authService, hash), store
}

func doRequest(r *Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUnknownGameReturns404(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(r, "GET", "/api/games/minecraft/players", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("players status = %d, want 404", rec.Code)
	}

	rec = doRequest(r, "GET", "/api/games/minecraft", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("game status = %d, want 404", rec.Code)
	}
}

func TestPlaytimeEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	store.RecordFirstJoin(ctx, "minecraft", "Alice", time.Now())
	store.AddPlaytime(ctx, "minecraft", "Alice", 300)

	rec := doRequest(r, "GET", "/api/games/minecraft/playtime", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0]["player"] != "Alice" {
		t.Errorf("entries = %v, want one entry for Alice", entries)
	}
}

func TestPointsEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	store.AwardPoints(context.Background(), "Alice", 42)

	rec := doRequest(r, "GET", "/api/points/Alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["balance"] != float64(42) {
		t.Errorf("balance = %v, want 42", resp["balance"])
	}
}

func TestLoginAndAuthFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	// Wrong password is rejected
	rec := doRequest(r, "POST", "/api/auth/login", "", LoginRequest{Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	// Correct password yields a token
	rec = doRequest(r, "POST", "/api/auth/login", "", LoginRequest{Password: "operator-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}
	var login LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}

	// Control routes reject missing and accept valid tokens
	rec = doRequest(r, "POST", "/api/games/minecraft/rcon", "", RconRequest{Command: "list"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated rcon status = %d, want 401", rec.Code)
	}

	// With a token the request passes auth; the game is unknown so it
	// fails with a client error, not 401
	rec = doRequest(r, "POST", "/api/games/minecraft/rcon", login.Token, RconRequest{Command: "list"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("authenticated rcon status = %d, want 400", rec.Code)
	}
}

func TestBroadcastValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	token := loginToken(t, r)
	rec := doRequest(r, "POST", "/api/games/minecraft/broadcast", token, BroadcastRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}
}

func loginToken(t *testing.T, r *Router) string {
	t.Helper()
	rec := doRequest(r, "POST", "/api/auth/login", "", LoginRequest{Password: "operator-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return login.Token
}
