package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/connection"
)

// ConnectionsCommand lists open cluster links.
func ConnectionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "connections",
		Aliases: []string{"conn"},
		Usage:   "List open links to peers",
		Action: func(c *cli.Context) error {
			var links []linkView
			err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
				return client.Get(ctx, "/admin/v1/connections", &links)
			})
			if err != nil {
				return err
			}
			return getSession(c).print(c.App.Writer, links)
		},
	}
}

// StatusCommand shows a node summary.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show node status",
		Action: showStatus,
	}
}

func showStatus(c *cli.Context) error {
	var st statusView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, "/admin/v1/status", &st)
	})
	if err != nil {
		return err
	}
	s := getSession(c)
	if !s.rich() {
		return s.print(c.App.Writer, st)
	}
	if err := s.print(c.App.Writer, st); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "\nbuild %s (%s) %s\n", st.Build.Version, st.Build.Commit, st.Build.GoVersion)
	return err
}

// HealthCommand probes /health, or /ready with --ready.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check whether the node is alive",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ready", Usage: "check readiness instead of liveness"},
		},
		Action: checkHealth,
	}
}

func checkHealth(c *cli.Context) error {
	path := "/health"
	if c.Bool("ready") {
		path = "/ready"
	}
	s := getSession(c)
	var h healthView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, path, &h)
	})
	if err != nil {
		if h.Status != "" {
			return fmt.Errorf("%s: %s (%s)", h.Node, h.Status, s.server)
		}
		return fmt.Errorf("%s unhealthy: %w", s.server, err)
	}
	if s.rich() {
		_, err := fmt.Fprintf(c.App.Writer, "%s: %s (%s)\n", h.Node, h.Status, s.server)
		return err
	}
	return s.print(c.App.Writer, h)
}
