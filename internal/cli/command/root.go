package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/config"
	"github.com/yndnr/eventlink-go/internal/cli/connection"
	"github.com/yndnr/eventlink-go/internal/cli/output"
	"github.com/yndnr/eventlink-go/internal/infra/buildinfo"
)

const sessionKey = "session"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "eventlink-cli",
		Usage:                "Manage an EventLink node through its admin API",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			IdentityCommand(),
			TrustCommand(),
			RoutesCommand(),
			SendCommand(),
			ConnectionsCommand(),
			StatusCommand(),
			HealthCommand(),
			ProfileCommand(),
		},
		Before: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			c.App.Metadata[sessionKey] = s
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "admin API address (overrides the profile)",
			EnvVars: []string{"EVENTLINK_ADMIN"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "saved profile to use",
			EnvVars: []string{"EVENTLINK_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"EVENTLINK_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show extra columns",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
		},
	}
}

// session carries what every command needs.
type session struct {
	cfg        *config.CLIConfig
	configPath string
	server     string
	format     output.Format
	wide       bool
	timeout    time.Duration
}

func newSession(c *cli.Context) (*session, error) {
	s := &session{configPath: c.String("config"), wide: c.Bool("wide")}

	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg

	s.server = c.String("server")
	if s.server == "" {
		if s.server, err = cfg.Server(c.String("profile")); err != nil {
			return nil, err
		}
	}

	format := c.String("output")
	if format == "" {
		format = cfg.DefaultOutput
	}
	if s.format, err = output.ParseFormat(format); err != nil {
		return nil, err
	}

	s.timeout = c.Duration("timeout")
	if s.timeout == 0 {
		s.timeout = cfg.Timeout
	}
	return s, nil
}

func getSession(c *cli.Context) *session {
	if s, ok := c.App.Metadata[sessionKey].(*session); ok {
		return s
	}
	// Before did not run, as when an action is called directly.
	s, err := newSession(c)
	if err != nil {
		return &session{cfg: config.Default(), server: config.DefaultServer, format: output.FormatTable}
	}
	return s
}

func (s *session) client() *connection.HTTPClient {
	return connection.NewHTTPClient(s.server, s.timeout)
}

func (s *session) context() (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// print renders data in the selected format.
func (s *session) print(w io.Writer, data any) error {
	return output.NewFormatter(s.format, s.wide).Format(w, data)
}

// rich reports whether output is for humans, so commands may add
// headings or summaries.
func (s *session) rich() bool {
	return s.format == output.FormatTable
}

// call runs one request against the admin API.
func call(c *cli.Context, fn func(ctx context.Context, client *connection.HTTPClient) error) error {
	s := getSession(c)
	ctx, cancel := s.context()
	defer cancel()
	return fn(ctx, s.client())
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s): %s", c.Command.FullName(), n, c.Command.ArgsUsage)
	}
	return nil
}
