package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mirror/internal/store"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("missing uptime")
	}
	for _, key := range []string{"clients", "store"} {
		if _, ok := body[key]; ok {
			t.Errorf("%s reported without its dependency", key)
		}
	}
}

func TestServer_HealthStore(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	s := New(Config{Store: st})

	get := func() (int, map[string]interface{}) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		var body map[string]interface{}
		json.NewDecoder(rec.Body).Decode(&body)
		return rec.Code, body
	}

	code, body := get()
	if code != http.StatusOK || body["store"] != "ok" {
		t.Errorf("open store: %d %v, want 200 store=ok", code, body)
	}

	st.Close()
	code, body = get()
	if code != http.StatusServiceUnavailable {
		t.Errorf("closed store: status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body["status"] != "degraded" {
		t.Errorf("closed store: status = %v, want degraded", body["status"])
	}
}

func TestServer_Routing(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>mirror</body></html>"
	script := "new WebSocket('/ws')"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mirror.js"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	withStatic := New(Config{StaticDir: dir})
	bare := New(Config{})

	tests := []struct {
		name     string
		server   *Server
		method   string
		path     string
		want     int
		wantBody string
	}{
		{"index", withStatic, http.MethodGet, "/", http.StatusOK, index},
		{"asset", withStatic, http.MethodGet, "/mirror.js", http.StatusOK, script},
		{"missing asset", withStatic, http.MethodGet, "/missing.css", http.StatusNotFound, ""},
		{"no static dir", bare, http.MethodGet, "/", http.StatusNotFound, ""},
		{"unknown api", bare, http.MethodGet, "/api/nonexistent", http.StatusNotFound, ""},
		{"health post", bare, http.MethodPost, "/api/health", http.StatusMethodNotAllowed, ""},
		{"health delete", bare, http.MethodDelete, "/api/health", http.StatusMethodNotAllowed, ""},
		// Routes whose dependency is not configured are not mounted.
		{"layouts unmounted", bare, http.MethodGet, "/api/layouts", http.StatusNotFound, ""},
		{"settings unmounted", bare, http.MethodGet, "/api/settings", http.StatusNotFound, ""},
		{"stream unmounted", bare, http.MethodGet, "/api/stream", http.StatusNotFound, ""},
		{"socket unmounted", bare, http.MethodGet, "/ws", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.server.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
