package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs named hooks once a stop signal arrives.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger
	signals []os.Signal

	mu    sync.Mutex
	hooks []hook
	done  chan struct{}
	once  sync.Once
	err   error
}

// NewHandler creates a handler whose hooks share one timeout.
func NewHandler(timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  logger,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a hook. Hooks run in reverse order of registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Wait blocks until SIGINT, SIGTERM or ctx is done, then runs the hooks.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		h.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	}
	return h.Shutdown()
}

// Shutdown runs every hook once, even when earlier ones fail, and returns
// the combined error. Later calls return the same result.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := append([]hook(nil), h.hooks...)
		h.mu.Unlock()

		var err error
		for i := len(hooks) - 1; i >= 0; i-- {
			start := time.Now()
			if herr := hooks[i].fn(ctx); herr != nil {
				h.logger.Error("shutdown hook failed", "hook", hooks[i].name, "error", herr)
				err = multierr.Append(err, fmt.Errorf("%s: %w", hooks[i].name, herr))
				continue
			}
			h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "took", time.Since(start))
		}
		h.err = err
		close(h.done)
	})
	return h.err
}

// Done is closed once every hook has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
