package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/eventlink-go/internal/cli/config"
)

// ProfileCommand manages saved admin endpoints in the CLI config file.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved admin endpoints",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List profiles",
				Action:  profileList,
			},
			{
				Name:      "set",
				Usage:     "Add or replace a profile",
				ArgsUsage: "NAME SERVER",
				Action:    profileSet,
			},
			{
				Name:      "use",
				Usage:     "Make a profile the default",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
		},
	}
}

func profileList(c *cli.Context) error {
	s := getSession(c)
	views := make([]profileView, 0, len(s.cfg.Profiles))
	for _, name := range s.cfg.ProfileNames() {
		views = append(views, profileView{
			Name:    name,
			Server:  s.cfg.Profiles[name].Server,
			Current: name == s.cfg.CurrentProfile,
		})
	}
	return s.print(c.App.Writer, views)
}

func profileSet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	s := getSession(c)
	name := c.Args().Get(0)
	if err := s.cfg.SetProfile(name, c.Args().Get(1)); err != nil {
		return err
	}
	if err := config.Save(s.cfg, s.configPath); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "saved profile %s\n", name)
	return err
}

func profileUse(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s := getSession(c)
	if err := s.cfg.Use(c.Args().First()); err != nil {
		return err
	}
	if err := config.Save(s.cfg, s.configPath); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "using profile %s\n", s.cfg.CurrentProfile)
	return err
}
