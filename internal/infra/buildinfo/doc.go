// Package buildinfo exposes version information injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/eventlink-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Values not injected fall back to what the Go toolchain recorded.
package buildinfo
