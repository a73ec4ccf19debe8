package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/node"
	"github.com/yndnr/eventlink-go/internal/routing"
	"github.com/yndnr/eventlink-go/internal/server/clusterserver"
	"github.com/yndnr/eventlink-go/internal/telemetry/logger"
	"github.com/yndnr/eventlink-go/internal/trust"
)

// maxBodySize bounds request bodies. Messages carry their payload inline.
const maxBodySize = 1 << 20

// Cluster is the node surface the API drives. *node.Node implements it.
type Cluster interface {
	Name() string
	Ready() bool
	Status() node.Status
	Identity() *trust.Identity

	Trust(p trust.Peer) error
	Untrust(name string) (string, string, error)
	TrustedPeers() ([]trust.Peer, error)
	CheckTrusted(ctx context.Context) (int, error)

	Links() []clusterserver.LinkInfo
	Send(targets []string, kind string, body []byte) (string, bool)

	ListTables() []routing.Summary
	Entries(table string) (map[string]routing.Entry, bool)
	Entry(table, name string) (routing.Entry, bool)
	AddEntry(table, name string) bool
	DeleteEntry(table, name string) bool
}

// Handler serves the admin API.
type Handler struct {
	cluster Cluster
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Handler for cluster.
func New(cluster Cluster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		cluster: cluster,
		logger:  logger.With("component", "admin"),
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/identity", h.handleIdentity)
	h.mux.HandleFunc("GET /admin/v1/trust", h.handleListTrust)
	h.mux.HandleFunc("POST /admin/v1/trust", h.handleAddTrust)
	h.mux.HandleFunc("POST /admin/v1/trust/refresh", h.handleRefreshTrust)
	h.mux.HandleFunc("DELETE /admin/v1/trust/{name}", h.handleRemoveTrust)

	h.mux.HandleFunc("GET /admin/v1/connections", h.handleConnections)
	h.mux.HandleFunc("POST /admin/v1/messages", h.handleSendMessage)
	h.mux.HandleFunc("GET /admin/v1/status", h.handleStatus)

	h.mux.HandleFunc("GET /admin/v1/routes", h.handleListRoutes)
	h.mux.HandleFunc("GET /admin/v1/routes/{table}", h.handleGetTable)
	h.mux.HandleFunc("POST /admin/v1/routes/{table}", h.handleAddEntry)
	h.mux.HandleFunc("GET /admin/v1/routes/{table}/{name}", h.handleGetEntry)
	h.mux.HandleFunc("DELETE /admin/v1/routes/{table}/{name}", h.handleDeleteEntry)
}

// writeJSON writes a success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse(getRequestID(r), code, message, nil))
}

// handleServiceError maps domain errors onto HTTP statuses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		h.writeError(w, r, errorCodeToHTTPStatus(de.Code), de.Code, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error")
}

// decodeJSON reads a bounded JSON body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4030"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4130"):
		return http.StatusRequestEntityTooLarge
	case strings.HasSuffix(code, "-4010"):
		return http.StatusConflict
	case strings.HasPrefix(code, "EL-ARG-"), strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"), strings.HasSuffix(code, "-5031"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
