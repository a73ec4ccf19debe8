package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/eventlink-go/internal/node"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
	"github.com/yndnr/eventlink-go/internal/trust"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestServer_ServeShutdown(t *testing.T) {
	s := New("127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve() = %v, want ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return")
	}
}

func newRouter(t *testing.T, allow []string) (http.Handler, *metric.Registry) {
	t.Helper()
	id, err := trust.GenerateIdentity("A", trust.AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatal(err)
	}
	reg := metric.NewRegistry()
	n, err := node.New(node.Config{
		Name:          "A",
		ListenAddr:    "127.0.0.1:0",
		Identity:      id,
		InMemoryTrust: true,
		Logger:        discard,
		Metrics:       reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { n.Close() })
	return NewRouter(&RouterConfig{Cluster: n, Logger: discard, Metrics: reg, AllowList: allow}), reg
}

func get(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Probes(t *testing.T) {
	h, _ := newRouter(t, []string{"127.0.0.1"})

	// Probes skip the allow list.
	if w := get(h, "/health", "192.0.2.7:4000"); w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
	w := get(h, "/ready", "192.0.2.7:4000")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before start = %d, want 503", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestRouter_AdminACL(t *testing.T) {
	h, reg := newRouter(t, []string{"127.0.0.1", "10.0.0.0/8"})

	if w := get(h, "/admin/v1/identity", "127.0.0.1:5000"); w.Code != http.StatusOK {
		t.Errorf("loopback = %d", w.Code)
	}
	if w := get(h, "/admin/v1/status", "10.1.2.3:5000"); w.Code != http.StatusOK {
		t.Errorf("cidr = %d", w.Code)
	}
	w := get(h, "/admin/v1/identity", "192.0.2.7:5000")
	if w.Code != http.StatusForbidden {
		t.Errorf("outsider = %d, want 403", w.Code)
	}
	if w := get(h, "/metrics", "192.0.2.7:5000"); w.Code != http.StatusForbidden {
		t.Errorf("outsider metrics = %d, want 403", w.Code)
	}

	if got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("GET /admin/v1/identity", "200")); got != 1 {
		t.Errorf("identity requests = %v, want 1", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newRouter(t, nil)
	w := get(h, "/metrics", "198.51.100.1:1234")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "eventlink_links_open") {
		t.Error("node gauges missing from /metrics")
	}
}
