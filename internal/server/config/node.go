package config

import (
	"errors"
	"log/slog"

	"github.com/yndnr/eventlink-go/internal/node"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

// ToNodeConfig maps the configuration onto node.Config.
func ToNodeConfig(cfg *ServerConfig, logger *slog.Logger, metrics *metric.Registry) (node.Config, error) {
	if cfg == nil {
		return node.Config{}, errors.New("server config is nil")
	}

	var password []byte
	if cfg.Security.Password != "" {
		password = []byte(cfg.Security.Password)
	}

	return node.Config{
		Name:                cfg.Node.Name,
		ListenAddr:          cfg.Node.ListenAddr,
		DataDir:             cfg.Security.DataDir,
		Password:            password,
		KeyAlgorithm:        cfg.Security.KeyAlgorithm,
		KeySize:             cfg.Security.KeySize,
		DefaultTTL:          cfg.Node.DefaultTTL,
		ConnectTimeout:      cfg.Node.ConnectTimeout,
		PropagationInterval: cfg.Node.PropagationInterval,
		ReconnectInterval:   cfg.Node.ReconnectInterval,
		ResetBeforePush:     cfg.Node.ResetBeforePush,
		RedialOnLoss:        cfg.Node.RedialOnLoss,
		MaxFrameSize:        cfg.Node.MaxFrameSize,
		AcceptRate:          cfg.Node.AcceptRate,
		AcceptBurst:         cfg.Node.AcceptBurst,
		SeenCacheSize:       cfg.Node.SeenCacheSize,
		Logger:              logger,
		Metrics:             metrics,
	}, nil
}
