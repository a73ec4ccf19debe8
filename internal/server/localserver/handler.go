package localserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/eventlink-go/internal/server/httpserver"
	"github.com/yndnr/eventlink-go/internal/server/httpserver/handler"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

// NewHandler builds the socket-side handler: the admin routes with request
// IDs, panic recovery and auditing, but no network ACL.
func NewHandler(cluster handler.Cluster, log *slog.Logger, metrics *metric.Registry) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("listener", "unix")
	return httpserver.Chain(handler.New(cluster, log),
		httpserver.RequestID(),
		httpserver.Recover(log),
		httpserver.Audit(log, metric.OrGlobal(metrics)),
	)
}
