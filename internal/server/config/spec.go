package config

import "time"

// ServerConfig is the root configuration for eventlink-server.
type ServerConfig struct {
	Node     NodeSection     `koanf:"node"`
	Security SecuritySection `koanf:"security"`
	Admin    AdminSection    `koanf:"admin"`
	Log      LogSection      `koanf:"log"`
}

// NodeSection configures the cluster member.
type NodeSection struct {
	// Name identifies the node in the cluster and in every certificate.
	Name       string `koanf:"name"`
	ListenAddr string `koanf:"listen_addr"`

	// DefaultTTL bounds both route re-flooding and message forwarding hops.
	DefaultTTL          int           `koanf:"default_ttl"`
	ConnectTimeout      time.Duration `koanf:"connect_timeout"`
	PropagationInterval time.Duration `koanf:"propagation_interval"`
	// ReconnectInterval re-dials trusted peers periodically. 0 disables it.
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
	ResetBeforePush   bool          `koanf:"reset_before_push"`
	RedialOnLoss      bool          `koanf:"redial_on_loss"`

	MaxFrameSize  int     `koanf:"max_frame_size"`
	AcceptRate    float64 `koanf:"accept_rate"`
	AcceptBurst   int     `koanf:"accept_burst"`
	SeenCacheSize int     `koanf:"seen_cache_size"`
}

// SecuritySection configures the identity and trust store.
type SecuritySection struct {
	DataDir string `koanf:"data_dir"`
	// Password seals the private key on disk. Empty stores it in clear.
	Password     string `koanf:"password"`
	KeyAlgorithm string `koanf:"key_algorithm"`
	KeySize      int    `koanf:"key_size"`
}

// AdminSection configures the admin HTTP API.
type AdminSection struct {
	Addr string `koanf:"addr"`
	// AllowList holds IPs or CIDRs allowed to call the API.
	AllowList []string `koanf:"allow_list"`
	// RateLimit is requests per second per client. 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// Socket is a Unix socket path serving the same API to local users
	// without the allow list. Empty disables it.
	Socket string `koanf:"socket"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
