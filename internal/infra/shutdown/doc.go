// Package shutdown runs registered cleanup hooks when the process is asked
// to stop.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("node", func(ctx context.Context) error { return n.Close() })
//	err := h.Wait(ctx) // SIGINT, SIGTERM or ctx
package shutdown
