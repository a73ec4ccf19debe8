package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/connection"
)

// RoutesCommand inspects and edits routing tables.
func RoutesCommand() *cli.Command {
	return &cli.Command{
		Name:    "routes",
		Aliases: []string{"rt"},
		Usage:   "Inspect and edit routing tables",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List tables with entry counts",
				Action:  routesList,
			},
			{
				Name:      "show",
				Usage:     "Show every entry of a table",
				ArgsUsage: "TABLE",
				Action:    routesShow,
			},
			{
				Name:      "get",
				Usage:     "Show where a name lives",
				ArgsUsage: "TABLE NAME",
				Action:    routesGet,
			},
			{
				Name:      "add",
				Usage:     "Publish a name owned by this node",
				ArgsUsage: "TABLE NAME",
				Action:    routesAdd,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Remove a name from the local table",
				ArgsUsage: "TABLE NAME",
				Action:    routesDelete,
			},
		},
	}
}

func tablePath(table string) string {
	return "/admin/v1/routes/" + connection.PathEscape(table)
}

func entryPath(table, name string) string {
	return tablePath(table) + "/" + connection.PathEscape(name)
}

func routesList(c *cli.Context) error {
	var tables []tableSummaryView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, "/admin/v1/routes", &tables)
	})
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, tables)
}

func routesShow(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	var table tableView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, tablePath(c.Args().First()), &table)
	})
	if err != nil {
		return err
	}
	s := getSession(c)
	if s.rich() {
		return s.print(c.App.Writer, table.Entries)
	}
	return s.print(c.App.Writer, table)
}

func routesGet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	var e entryView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Get(ctx, entryPath(c.Args().Get(0), c.Args().Get(1)), &e)
	})
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, e)
}

func routesAdd(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	table, name := c.Args().Get(0), c.Args().Get(1)
	var e entryView
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Post(ctx, tablePath(table), map[string]string{"name": name}, &e)
	})
	if err != nil {
		return err
	}
	return getSession(c).print(c.App.Writer, e)
}

func routesDelete(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	table, name := c.Args().Get(0), c.Args().Get(1)
	err := call(c, func(ctx context.Context, client *connection.HTTPClient) error {
		return client.Delete(ctx, entryPath(table, name), nil)
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "deleted %s/%s\n", table, name)
	return err
}
