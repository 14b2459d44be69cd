package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/shelf"
	"github.com/starford/shelf/internal/app"
	"github.com/starford/shelf/internal/manifest"
	pkgconfig "github.com/starford/shelf/pkg/config"
)

func load(cmd *cli.Command) (*app.App, error) {
	var m manifest.Manifest
	if err := pkgconfig.Load(cmd.String("config"), &m); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return app.New(&m)
}

func requireArg(cmd *cli.Command, position int, what string) (string, error) {
	arg := cmd.Args().Get(position)
	if arg == "" {
		return "", fmt.Errorf("missing %s argument", what)
	}
	return arg, nil
}

func main() {
	// msgpack is opt-in for the library; the CLI always offers it.
	if err := shelf.Register(shelf.MsgpackHandler()); err != nil {
		slog.Error("register msgpack handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cmd := &cli.Command{
		Name:  "shelf",
		Usage: "Query and edit directories of structured record files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the collections manifest",
				Value:   "shelf.yml",
				Sources: cli.EnvVars("SHELF_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List records in a collection",
				ArgsUsage: "<collection>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "order",
						Usage: "Sort by record field; prefix with - for descending",
					},
					&cli.IntFlag{
						Name:  "head",
						Usage: "Show only the first n records (0 for all)",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "tail",
						Usage: "Show only the last n records",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "collection")
					if err != nil {
						return err
					}
					a, err := load(cmd)
					if err != nil {
						return err
					}
					head := int(cmd.Int("head"))
					tail := 0
					if cmd.IsSet("tail") {
						tail = int(cmd.Int("tail"))
						head = 0
					}
					return a.List(name, cmd.String("order"), head, tail)
				},
			},
			{
				Name:      "get",
				Usage:     "Print one record as JSON",
				ArgsUsage: "<collection> <file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "collection")
					if err != nil {
						return err
					}
					file, err := requireArg(cmd, 1, "file")
					if err != nil {
						return err
					}
					a, err := load(cmd)
					if err != nil {
						return err
					}
					return a.Get(name, file)
				},
			},
			{
				Name:      "add",
				Usage:     "Store a record given as JSON (pass - to read stdin)",
				ArgsUsage: "<collection> <json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "File name to write; derived from the record when omitted",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "collection")
					if err != nil {
						return err
					}
					data, err := requireArg(cmd, 1, "json")
					if err != nil {
						return err
					}
					if data == "-" {
						raw, err := io.ReadAll(os.Stdin)
						if err != nil {
							return fmt.Errorf("read stdin: %w", err)
						}
						data = string(raw)
					}
					a, err := load(cmd)
					if err != nil {
						return err
					}
					return a.Add(name, cmd.String("name"), data)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a record file",
				ArgsUsage: "<collection> <file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "collection")
					if err != nil {
						return err
					}
					file, err := requireArg(cmd, 1, "file")
					if err != nil {
						return err
					}
					a, err := load(cmd)
					if err != nil {
						return err
					}
					return a.Remove(name, file)
				},
			},
			{
				Name:      "watch",
				Usage:     "Log collection changes until interrupted",
				ArgsUsage: "<collection>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "collection")
					if err != nil {
						return err
					}
					a, err := load(cmd)
					if err != nil {
						return err
					}
					return a.Watch(ctx, name)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
