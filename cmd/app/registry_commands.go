package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/consentbroker/cmd/app/commands"
	"github.com/allisson/consentbroker/internal/app"
	"github.com/allisson/consentbroker/internal/config"
)

func getRegistryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-application",
			Usage: "Register a participant application",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Application name (e.g., service-a)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				applicationUseCase, err := container.ApplicationUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateApplication(
					ctx,
					applicationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "add-capability",
			Usage: "Declare a capability on a registered application",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "application",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Application name",
				},
				&cli.StringFlag{
					Name:     "capability",
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "Capability name (e.g., view_balance)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				applicationUseCase, err := container.ApplicationUseCase()
				if err != nil {
					return err
				}

				return commands.RunAddCapability(
					ctx,
					applicationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("application"),
					cmd.String("capability"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-applications",
			Usage: "List registered applications and their capabilities",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				applicationUseCase, err := container.ApplicationUseCase()
				if err != nil {
					return err
				}

				return commands.RunListApplications(
					ctx,
					applicationUseCase,
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "sync-manifest",
			Usage: "Register an application and its capabilities from a capability manifest",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "file",
					Aliases: []string{"m"},
					Usage:   "Path to a manifest YAML file",
				},
				&cli.StringFlag{
					Name:    "url",
					Aliases: []string{"u"},
					Usage:   "URL of a published manifest (e.g., http://localhost:8002/.well-known/capability-manifest)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				applicationUseCase, err := container.ApplicationUseCase()
				if err != nil {
					return err
				}

				return commands.RunSyncManifest(
					ctx,
					applicationUseCase,
					container.ManifestFetcher(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("file"),
					cmd.String("url"),
					cmd.String("format"),
				)
			},
		},
	}
}
