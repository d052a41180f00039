// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jwilger/authorizir/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:     "authorizir",
		Usage:    "Hierarchical authorization engine",
		Version:  version,
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func getCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunMigrations()
			},
		},
		{
			Name:  "init",
			Usage: "Reconcile persisted state with the declaration seed file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "seed",
					Aliases: []string{"s"},
					Value:   "",
					Usage:   "Path to the declaration YAML (defaults to SEED_FILE)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunInit(ctx, cmd.String("seed"))
			},
		},
		{
			Name:      "check",
			Usage:     "Evaluate an authorization query",
			ArgsUsage: "<subject> <object> <permission>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCheck(ctx, cmd.Args().Slice())
			},
		},
		{
			Name:      "register",
			Usage:     "Register a dynamic subject, object, or permission",
			ArgsUsage: "<kind> <id> <description>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRegister(ctx, cmd.Args().Slice())
			},
		},
		{
			Name:      "grant",
			Usage:     "Record a positive access rule",
			ArgsUsage: "<subject> <object> <permission>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRule(ctx, "grant", cmd.Args().Slice())
			},
		},
		{
			Name:      "deny",
			Usage:     "Record a negative access rule",
			ArgsUsage: "<subject> <object> <permission>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRule(ctx, "deny", cmd.Args().Slice())
			},
		},
		{
			Name:      "revoke",
			Usage:     "Remove a positive access rule",
			ArgsUsage: "<subject> <object> <permission>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRule(ctx, "revoke", cmd.Args().Slice())
			},
		},
		{
			Name:      "allow",
			Usage:     "Remove a negative access rule",
			ArgsUsage: "<subject> <object> <permission>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRule(ctx, "allow", cmd.Args().Slice())
			},
		},
		{
			Name:      "add-child",
			Usage:     "Add a parent -> child edge to a hierarchy",
			ArgsUsage: "<kind> <parent> <child>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunAddChild(ctx, cmd.Args().Slice())
			},
		},
		{
			Name:      "remove-child",
			Usage:     "Remove a parent -> child edge from a hierarchy",
			ArgsUsage: "<kind> <parent> <child>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRemoveChild(ctx, cmd.Args().Slice())
			},
		},
		{
			Name:      "members",
			Usage:     "List the descendants of a node",
			ArgsUsage: "<kind> <id>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunMembers(ctx, cmd.Args().Slice())
			},
		},
		{
			Name:      "list-rules",
			Usage:     "List rules by subject or object",
			ArgsUsage: "<subject|object> <id>",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunListRules(ctx, cmd.Args().Slice())
			},
		},
	}
}
