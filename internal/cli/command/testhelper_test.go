package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// mockServer answers admin API routes with canned envelopes and records
// request bodies.
type mockServer struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string]map[string]any
}

func newMockServer(t *testing.T, routes map[string]http.HandlerFunc) *mockServer {
	t.Helper()
	m := &mockServer{bodies: make(map[string]map[string]any)}
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength != 0 {
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				m.mu.Lock()
				m.bodies[pattern] = body
				m.mu.Unlock()
			}
			h(w, r)
		})
	}
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) body(pattern string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies[pattern]
}

func ok(data any) http.HandlerFunc {
	return reply(http.StatusOK, "OK", data)
}

func reply(status int, code string, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"code":       code,
			"message":    "message for " + code,
			"request_id": "req-test",
			"timestamp":  time.Now().UnixMilli(),
			"data":       data,
		})
	}
}

// run executes the CLI against server with an isolated config file.
func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	return runWithConfig(t, filepath.Join(t.TempDir(), "cli.yaml"), server, args...)
}

func runWithConfig(t *testing.T, configPath, server string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	full := []string{"eventlink-cli", "--config", configPath}
	if server != "" {
		full = append(full, "--server", server)
	}
	err := app.Run(append(full, args...))
	return out.String(), err
}
