package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/connection"
)

// SendCommand injects a message into the cluster from this node.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message to one or more nodes",
		ArgsUsage: "TARGET...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "message kind the receiver dispatches on", Value: "admin"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "message body; - reads stdin"},
		},
		Action: sendMessage,
	}
}

func sendMessage(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("send: at least one TARGET is required")
	}
	body := c.String("body")
	if body == "-" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
		if err != nil {
			return err
		}
		body = string(data)
	}

	req := map[string]any{
		"targets": c.Args().Slice(),
		"kind":    c.String("kind"),
		"body":    body,
	}
	var res sendView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Post(ctx, "/admin/v1/messages", req, &res)
	})
	if err != nil {
		return err
	}
	s := getSession(c)
	if s.rich() {
		_, err := fmt.Fprintf(c.App.Writer, "sent %s\n", res.ID)
		return err
	}
	return s.print(c.App.Writer, res)
}
