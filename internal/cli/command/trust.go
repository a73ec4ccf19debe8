package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/connection"
)

// TrustCommand manages the trusted peer list.
func TrustCommand() *cli.Command {
	return &cli.Command{
		Name:  "trust",
		Usage: "Manage trusted peers",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List trusted peers",
				Action:  trustList,
			},
			{
				Name:  "add",
				Usage: "Trust a peer by name, address and certificate",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "peer node name", Required: true},
					&cli.StringFlag{Name: "host", Usage: "peer cluster host", Required: true},
					&cli.IntFlag{Name: "port", Usage: "peer cluster port", Value: 25365},
					&cli.StringFlag{Name: "cert", Aliases: []string{"c"}, Usage: "peer certificate PEM file", Required: true},
				},
				Action: trustAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a trusted peer and close its link",
				ArgsUsage: "NAME",
				Action:    trustRemove,
			},
			{
				Name:   "refresh",
				Usage:  "Open links to trusted peers that are not connected",
				Action: trustRefresh,
			},
		},
	}
}

func trustList(c *cli.Context) error {
	var peers []trustView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, "/admin/v1/trust", &peers)
	})
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, peers)
}

func trustAdd(c *cli.Context) error {
	pem, err := os.ReadFile(c.String("cert"))
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	body := map[string]any{
		"name":            c.String("name"),
		"host":            c.String("host"),
		"port":            c.Int("port"),
		"certificate_pem": string(pem),
	}

	var peer trustView
	err = call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Post(ctx, "/admin/v1/trust", body, &peer)
	})
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, peer)
}

func trustRemove(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	var res untrustView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Delete(ctx, "/admin/v1/trust/"+connection.PathEscape(c.Args().First()), &res)
	})
	if err != nil {
		return err
	}
	s := getSession(c)
	if s.rich() {
		fmt.Fprintln(c.App.Writer, res.Trust)
		fmt.Fprintln(c.App.Writer, res.Connection)
		return nil
	}
	return s.print(c.App.Writer, res)
}

func trustRefresh(c *cli.Context) error {
	var res refreshView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Post(ctx, "/admin/v1/trust/refresh", nil, &res)
	})
	if err != nil {
		return err
	}
	s := getSession(c)
	if s.rich() {
		_, err := fmt.Fprintf(c.App.Writer, "opened %d link(s)\n", res.Opened)
		return err
	}
	return s.print(c.App.Writer, res)
}
