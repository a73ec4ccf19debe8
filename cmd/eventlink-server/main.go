package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/infra/buildinfo"
	"github.com/yndnr/eventlink-go/internal/infra/confloader"
	"github.com/yndnr/eventlink-go/internal/infra/shutdown"
	"github.com/yndnr/eventlink-go/internal/node"
	"github.com/yndnr/eventlink-go/internal/server/config"
	"github.com/yndnr/eventlink-go/internal/server/httpserver"
	"github.com/yndnr/eventlink-go/internal/server/localserver"
	"github.com/yndnr/eventlink-go/internal/telemetry/logger"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:    "eventlink-server",
		Usage:   "Run an EventLink cluster node",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", EnvVars: []string{"EVENTLINK_CONFIG"}},
			&cli.StringFlag{Name: "name", Usage: "node name (node.name)"},
			&cli.StringFlag{Name: "listen", Usage: "cluster listen address (node.listen_addr)"},
			&cli.StringFlag{Name: "admin", Usage: "admin API address (admin.addr)"},
			&cli.StringFlag{Name: "socket", Usage: "admin Unix socket path (admin.socket)"},
			&cli.StringFlag{Name: "data-dir", Usage: "identity and trust store directory (security.data_dir)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (log.level)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flagOverrides maps explicitly set flags onto configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"name":      "node.name",
		"listen":    "node.listen_addr",
		"admin":     "admin.addr",
		"socket":    "admin.socket",
		"data-dir":  "security.data_dir",
		"log-level": "log.level",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

func run(c *cli.Context) error {
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(flagOverrides(c)),
	)
	cfg, err := loadConfig(loader)
	if err != nil {
		return err
	}

	log, err := logger.NewSlog(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
		Node:   cfg.Node.Name,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting eventlink-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", loader.FilePath(),
		"settings", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	nodeCfg, err := config.ToNodeConfig(cfg, log, metrics)
	if err != nil {
		return err
	}
	n, err := node.New(nodeCfg)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := n.Start(ctx); err != nil {
		n.Close()
		return fmt.Errorf("start node: %w", err)
	}
	log.Info("cluster listener ready", "node", n.Name(), "addr", n.Addr().String(), "fingerprint", n.Identity().Fingerprint())

	// Hooks run in reverse: watcher, admin listeners, then the node.
	sh := shutdown.NewHandler(shutdownTimeout, log)
	sh.OnShutdown("node", func(context.Context) error { return n.Close() })
	serveErr := make(chan error, 2)

	if cfg.Admin.Addr != "" {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Cluster:   n,
			Logger:    log,
			Metrics:   metrics,
			AllowList: cfg.Admin.AllowList,
			RateLimit: cfg.Admin.RateLimit,
			RateBurst: cfg.Admin.RateBurst,
		})
		admin := httpserver.New(cfg.Admin.Addr, router)
		ln, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			sh.Shutdown()
			return fmt.Errorf("admin listen: %w", err)
		}
		sh.OnShutdown("admin", admin.Shutdown)
		go func() {
			log.Info("admin API listening", "addr", ln.Addr().String())
			if err := admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("admin API: %w", err)
			}
		}()
	}

	if cfg.Admin.Socket != "" {
		local := localserver.New(cfg.Admin.Socket, localserver.NewHandler(n, log, metrics))
		if err := local.Listen(); err != nil {
			sh.Shutdown()
			return fmt.Errorf("admin socket: %w", err)
		}
		sh.OnShutdown("admin-socket", local.Shutdown)
		go func() {
			log.Info("admin socket listening", "path", local.Path())
			if err := local.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("admin socket: %w", err)
			}
		}()
	}

	if path := loader.FilePath(); path != "" {
		stop, err := watchConfig(loader, path, log)
		if err != nil {
			log.Warn("config watch disabled", "path", path, "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	waitCtx, stopWait := context.WithCancelCause(ctx)
	defer stopWait(nil)
	go func() {
		select {
		case err := <-serveErr:
			log.Error("admin listener failed", "error", err)
			stopWait(err)
		case <-waitCtx.Done():
		}
	}()

	if err := sh.Wait(waitCtx); err != nil {
		return err
	}
	if cause := context.Cause(waitCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	log.Info("server stopped")
	return nil
}

func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchConfig re-reads the file on change and applies log.level. Other
// settings need a restart.
func watchConfig(loader *confloader.Loader, path string, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg := config.Default()
		if err := loader.Reload(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.CurrentLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w.Stop, nil
}
