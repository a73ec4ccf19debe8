package config

import "time"

// Default configuration values.
const (
	DefaultListenAddr          = "0.0.0.0:25365"
	DefaultTTL                 = 10
	DefaultConnectTimeout      = 5 * time.Second
	DefaultPropagationInterval = time.Second
	DefaultMaxFrameSize        = 4 << 20
	DefaultAcceptRate          = 20
	DefaultAcceptBurst         = 40
	DefaultSeenCacheSize       = 4096

	DefaultDataDir      = "./eventlink-data"
	DefaultKeyAlgorithm = "ecdsa-p256"
	DefaultKeySize      = 2048

	DefaultAdminAddr = "127.0.0.1:25366"
	DefaultRateLimit = 50
	DefaultRateBurst = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Node: NodeSection{
			ListenAddr:          DefaultListenAddr,
			DefaultTTL:          DefaultTTL,
			ConnectTimeout:      DefaultConnectTimeout,
			PropagationInterval: DefaultPropagationInterval,
			ResetBeforePush:     true,
			RedialOnLoss:        false,
			MaxFrameSize:        DefaultMaxFrameSize,
			AcceptRate:          DefaultAcceptRate,
			AcceptBurst:         DefaultAcceptBurst,
			SeenCacheSize:       DefaultSeenCacheSize,
		},
		Security: SecuritySection{
			DataDir:      DefaultDataDir,
			KeyAlgorithm: DefaultKeyAlgorithm,
			KeySize:      DefaultKeySize,
		},
		Admin: AdminSection{
			Addr:      DefaultAdminAddr,
			AllowList: []string{"127.0.0.1", "::1"},
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
