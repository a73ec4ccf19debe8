package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/eventlink-go/internal/telemetry/logger"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, remote string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	serve(Chain(ok, mark("a"), mark("b"), mark("c")), "127.0.0.1:1", nil)
	if strings.Join(order, "") != "abc" {
		t.Errorf("order = %v, want a b c", order)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	w := serve(h, "127.0.0.1:1", nil)
	got := w.Header().Get("X-Request-ID")
	if !strings.HasPrefix(got, "req-") || seen != got {
		t.Errorf("generated id = %q, context = %q", got, seen)
	}

	w = serve(h, "127.0.0.1:1", map[string]string{"X-Request-ID": "abc"})
	if w.Header().Get("X-Request-ID") != "abc" || seen != "abc" {
		t.Errorf("propagated id = %q, context = %q", w.Header().Get("X-Request-ID"), seen)
	}

	long := strings.Repeat("x", 100)
	w = serve(h, "127.0.0.1:1", map[string]string{"X-Request-ID": long})
	if w.Header().Get("X-Request-ID") == long {
		t.Error("oversized request id was reused")
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recover(discard))

	w := serve(h, "127.0.0.1:1", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if w.Header().Get("X-Error-Code") != "EL-SYS-5000" {
		t.Errorf("X-Error-Code = %q", w.Header().Get("X-Error-Code"))
	}
}

func TestNetworkACL(t *testing.T) {
	tests := []struct {
		name   string
		allow  []string
		remote string
		want   int
	}{
		{"empty list allows all", nil, "203.0.113.9:1", http.StatusOK},
		{"exact ip", []string{"127.0.0.1"}, "127.0.0.1:1", http.StatusOK},
		{"ipv6 loopback", []string{"::1"}, "[::1]:1", http.StatusOK},
		{"cidr", []string{"10.0.0.0/8"}, "10.200.0.1:1", http.StatusOK},
		{"outside", []string{"10.0.0.0/8"}, "11.0.0.1:1", http.StatusForbidden},
		{"invalid entries skipped", []string{"bogus", "10.0.0.0/33"}, "10.0.0.1:1", http.StatusForbidden},
		{"unparseable client", []string{"127.0.0.1"}, "garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(NetworkACL(tt.allow, discard)(ok), tt.remote, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestNetworkACL_IgnoresForwardedFor(t *testing.T) {
	h := NetworkACL([]string{"127.0.0.1"}, discard)(ok)
	w := serve(h, "203.0.113.9:1", map[string]string{"X-Forwarded-For": "127.0.0.1"})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2)(ok)
	for i := 0; i < 2; i++ {
		if w := serve(h, "127.0.0.1:1", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := serve(h, "127.0.0.1:1", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Errorf("third request = %d", w.Code)
	}
	if w := serve(h, "127.0.0.2:1", nil); w.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", w.Code)
	}

	if w := serve(RateLimit(0, 0)(ok), "127.0.0.1:1", nil); w.Code != http.StatusOK {
		t.Errorf("disabled limiter = %d", w.Code)
	}
}

func TestAudit_RecordsStatus(t *testing.T) {
	reg := metric.NewRegistry()
	h := Audit(discard, reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := serve(h, "127.0.0.1:1", nil)
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
	// No mux ran, so the route is unmatched.
	if got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("GET unmatched", "418")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}
