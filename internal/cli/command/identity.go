package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/connection"
)

// IdentityCommand shows or exports the node's own certificate.
func IdentityCommand() *cli.Command {
	return &cli.Command{
		Name:  "identity",
		Usage: "Show the node identity",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show name, fingerprint and expiry",
				Action: identityShow,
			},
			{
				Name:  "export",
				Usage: "Write the certificate PEM for another node to trust",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"f"}, Usage: "output file (default stdout)"},
				},
				Action: identityExport,
			},
		},
		Action: identityShow,
	}
}

func fetchIdentity(c *cli.Context) (identityView, error) {
	var id identityView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, "/admin/v1/identity", &id)
	})
	return id, err
}

func identityShow(c *cli.Context) error {
	id, err := fetchIdentity(c)
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, id)
}

func identityExport(c *cli.Context) error {
	id, err := fetchIdentity(c)
	if err != nil {
		return err
	}
	if path := c.String("out"); path != "" {
		if err := os.WriteFile(path, []byte(id.CertificatePEM), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote certificate for %s to %s\n", id.Name, path)
		return nil
	}
	_, err = fmt.Fprint(c.App.Writer, id.CertificatePEM)
	return err
}
