package httpserver

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/telemetry/logger"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

// rateLimitClients bounds the number of per-client limiters kept.
const rateLimitClients = 1024

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first one runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID tags each request with an ID, reusing X-Request-ID when sent.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = "req-" + ulid.Make().String()
			}
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Recover turns a panic into a 500 envelope.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.ErrorContext(r.Context(), "panic recovered",
						"error", err,
						"path", r.URL.Path,
					)
					writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every request and records request metrics labelled by the
// matched route pattern.
func Audit(log *slog.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			route := r.Pattern
			if route == "" {
				route = r.Method + " unmatched"
			}
			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(wrapped.statusCode)).Inc()
				metrics.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
			}

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "request completed",
				"route", route,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", clientIP(r),
			)
		})
	}
}

// NetworkACL only lets clients from allowList through. Entries are IPs or
// CIDRs; invalid entries are logged and skipped. An empty list allows all.
func NetworkACL(allowList []string, log *slog.Logger) Middleware {
	var prefixes []netip.Prefix
	for _, entry := range allowList {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				log.Warn("invalid CIDR in allowlist", "entry", entry, "error", err)
				continue
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(entry)
		if err != nil {
			log.Warn("invalid IP in allowlist", "entry", entry, "error", err)
			continue
		}
		prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowList) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ip, err := netip.ParseAddr(clientIP(r))
			if err == nil {
				ip = ip.Unmap()
				for _, p := range prefixes {
					if p.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			log.Warn("request denied by network ACL", "client_ip", clientIP(r), "path", r.URL.Path)
			writeError(w, r, http.StatusForbidden, domain.ErrForbidden.Code, "client not in allow list")
		})
	}
}

// RateLimit applies a token bucket per client IP. perSecond <= 0 disables it.
func RateLimit(perSecond float64, burst int) Middleware {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = int(perSecond) + 1
	}
	limiters, _ := lru.New[string, *rate.Limiter](rateLimitClients)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			l, ok := limiters.Get(ip)
			if !ok {
				l = rate.NewLimiter(rate.Limit(perSecond), burst)
				if prev, found, _ := limiters.PeekOrAdd(ip, l); found {
					l = prev
				}
			}
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, "EL-SYS-4290", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       code,
		"message":    message,
		"request_id": logger.RequestIDFromContext(r.Context()),
		"timestamp":  time.Now().UnixMilli(),
	})
}

// clientIP is the TCP peer address. Forwarding headers are ignored because
// the allow list must not be spoofable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
