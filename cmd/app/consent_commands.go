package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/consentbroker/cmd/app/commands"
	"github.com/allisson/consentbroker/internal/app"
	"github.com/allisson/consentbroker/internal/config"
)

func getConsentCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list-consents",
			Usage: "List the consent grants of a user",
			Flags: []cli.Flag{userFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				consentUseCase, err := container.ConsentUseCase()
				if err != nil {
					return err
				}

				return commands.RunListConsents(
					ctx,
					consentUseCase,
					commands.DefaultIO().Writer,
					cmd.String("user"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-user-consents",
			Usage: "Revoke every consent grant of a user",
			Flags: []cli.Flag{userFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				consentUseCase, err := container.ConsentUseCase()
				if err != nil {
					return err
				}

				return commands.RunRevokeUserConsents(
					ctx,
					consentUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("user"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-all-consents",
			Usage: "Revoke every consent grant in the registry",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Usage:   "Skip the confirmation prompt",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				consentUseCase, err := container.ConsentUseCase()
				if err != nil {
					return err
				}

				return commands.RunRevokeAllConsents(
					ctx,
					consentUseCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.Bool("yes"),
					cmd.String("format"),
				)
			},
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Required: true,
		Usage:    "User identifier (token subject)",
	}
}
