package clusterserver

import (
	"context"
	"errors"
	"net"
	"time"
)

// ListenAndServe listens on addr and serves inbound links until ctx is
// done or the manager is closed.
func (m *Manager) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.Serve(ctx, ln)
}

// Serve accepts inbound connections on ln. Handshakes are rate limited;
// connections over the limit are closed immediately. ln is closed when
// Serve returns.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	m.listeners = append(m.listeners, ln)
	m.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	m.logger.Info("cluster listener started", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || m.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			m.logger.Warn("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		if !m.limiter.Allow() {
			m.metrics.LinkEvents.WithLabelValues("rejected").Inc()
			m.logger.Debug("inbound connection rate limited", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}
		if !m.track() {
			conn.Close()
			return nil
		}
		go func() {
			defer m.wg.Done()
			l, err := m.accept(m.ctx, conn)
			if err != nil {
				m.metrics.LinkEvents.WithLabelValues("rejected").Inc()
				m.logger.Warn("inbound link rejected", "remote", conn.RemoteAddr().String(), "error", err)
				return
			}
			m.register(l)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
