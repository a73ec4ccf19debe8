package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return multierr.Combine(
		verifyNode(&cfg.Node),
		verifySecurity(&cfg.Security),
		verifyAdmin(&cfg.Admin),
		verifyLog(&cfg.Log),
	)
}

func verifyNode(cfg *NodeSection) error {
	var err error
	if cfg.Name == "" {
		err = multierr.Append(err, errors.New("node.name is required"))
	} else if verr := domain.ValidateNodeName(cfg.Name); verr != nil {
		err = multierr.Append(err, fmt.Errorf("node.name: %w", verr))
	}
	if _, _, serr := net.SplitHostPort(cfg.ListenAddr); serr != nil {
		err = multierr.Append(err, fmt.Errorf("node.listen_addr: %w", serr))
	}
	if cfg.DefaultTTL < 1 {
		err = multierr.Append(err, errors.New("node.default_ttl must be at least 1"))
	}
	if cfg.ConnectTimeout <= 0 {
		err = multierr.Append(err, errors.New("node.connect_timeout must be positive"))
	}
	if cfg.PropagationInterval <= 0 {
		err = multierr.Append(err, errors.New("node.propagation_interval must be positive"))
	}
	if cfg.ReconnectInterval < 0 {
		err = multierr.Append(err, errors.New("node.reconnect_interval must not be negative"))
	}
	if cfg.MaxFrameSize < 1024 {
		err = multierr.Append(err, errors.New("node.max_frame_size must be at least 1024"))
	}
	if cfg.AcceptRate <= 0 || cfg.AcceptBurst < 1 {
		err = multierr.Append(err, errors.New("node.accept_rate and node.accept_burst must be positive"))
	}
	if cfg.SeenCacheSize < 1 {
		err = multierr.Append(err, errors.New("node.seen_cache_size must be at least 1"))
	}
	return err
}

func verifySecurity(cfg *SecuritySection) error {
	var err error
	if cfg.DataDir == "" {
		err = multierr.Append(err, errors.New("security.data_dir is required"))
	} else if merr := os.MkdirAll(cfg.DataDir, 0o700); merr != nil {
		err = multierr.Append(err, fmt.Errorf("cannot create data directory: %w", merr))
	}
	switch cfg.KeyAlgorithm {
	case "ecdsa-p256", "ed25519":
	case "rsa":
		if cfg.KeySize < 2048 {
			err = multierr.Append(err, errors.New("security.key_size must be at least 2048 for rsa"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("security.key_algorithm %q is not supported", cfg.KeyAlgorithm))
	}
	return err
}

func verifyAdmin(cfg *AdminSection) error {
	var err error
	// sun_path is 104 bytes on BSD and macOS, 108 on Linux.
	if len(cfg.Socket) > 103 {
		err = multierr.Append(err, fmt.Errorf("admin.socket: path %q is too long", cfg.Socket))
	}
	if cfg.Addr == "" {
		return err
	}
	if _, _, serr := net.SplitHostPort(cfg.Addr); serr != nil {
		err = multierr.Append(err, fmt.Errorf("admin.addr: %w", serr))
	}
	for _, entry := range cfg.AllowList {
		if !validAllowEntry(entry) {
			err = multierr.Append(err, fmt.Errorf("admin.allow_list: %q is not an IP or CIDR", entry))
		}
	}
	if cfg.RateLimit < 0 {
		err = multierr.Append(err, errors.New("admin.rate_limit must not be negative"))
	}
	return err
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Format)
	}
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a level", cfg.Level)
	}
	return nil
}

func validAllowEntry(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
