// Command kitchenhub runs the kitchen WebSocket hub and its tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "kitchenhub",
		Usage:   "real-time order, batch and capacity updates for kitchens and storefronts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML or JSON config file",
				Sources: cli.EnvVars("KITCHENHUB_CONFIG"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the hub, the push API and the optional Redis relay",
				Action: serve,
			},
			{
				Name:  "watch",
				Usage: "connect to a hub and print every envelope it sends",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Value: "ws://localhost:3000/ws",
						Usage: "hub WebSocket endpoint",
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "JWT identifying the user and kitchen",
						Sources:  cli.EnvVars("KITCHENHUB_TOKEN"),
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ping",
						Value: 20 * time.Second,
						Usage: "interval of application pings, 0 to disable",
					},
				},
				Action: watch,
			},
			{
				Name:  "token",
				Usage: "mint a development token with the configured secret",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Usage: "user id", Required: true},
					&cli.Int64Flag{Name: "kitchen", Usage: "kitchen id", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
				Action: token,
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "kitchenhub %s\n", version)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
