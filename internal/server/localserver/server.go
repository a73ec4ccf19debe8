package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// Server is the local management server.
type Server struct {
	path string
	srv  *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New creates a server for socketPath.
func New(socketPath string, h http.Handler) *Server {
	return &Server{
		path: socketPath,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen creates the socket. A stale socket file left by a crashed process
// is replaced; any other file at the path is an error.
func (s *Server) Listen() error {
	if info, err := os.Lstat(s.path); err == nil {
		if info.Mode()&fs.ModeSocket == 0 {
			return fmt.Errorf("%s exists and is not a socket", s.path)
		}
		if conn, err := net.DialTimeout("unix", s.path, time.Second); err == nil {
			conn.Close()
			return fmt.Errorf("%s is in use by another process", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Serve blocks serving requests until Shutdown. Listen must be called
// first.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("localserver: Serve called before Listen")
	}
	return s.srv.Serve(ln)
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting requests, waits for active ones within ctx and
// removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.mu.Lock()
	if s.ln != nil {
		// Already closed when Serve ran; this covers Listen without Serve.
		s.ln.Close()
	}
	s.mu.Unlock()
	if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}
