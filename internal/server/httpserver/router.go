package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/eventlink-go/internal/server/httpserver/handler"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Cluster handler.Cluster
	Logger  *slog.Logger
	Metrics *metric.Registry

	// AllowList is the IP/CIDR allowlist for /admin and /metrics.
	AllowList []string

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64
	RateBurst int
}

// NewRouter wires every route with its middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := metric.OrGlobal(cfg.Metrics)
	h := handler.New(cfg.Cluster, log)

	mux := http.NewServeMux()

	// Liveness probes skip the ACL.
	probes := Chain(h, RequestID(), Recover(log))
	mux.Handle("GET /health", probes)
	mux.Handle("GET /ready", probes)

	guarded := []Middleware{
		RequestID(),
		Recover(log),
		NetworkACL(cfg.AllowList, log),
		RateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	mux.Handle("GET /metrics", Chain(metrics.Handler(), guarded...))
	mux.Handle("/admin/", Chain(h, append(guarded, Audit(log, metrics))...))

	return mux
}
