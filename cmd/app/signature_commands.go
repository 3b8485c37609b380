package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/recoverydesk/esign/cmd/app/commands"
	"github.com/recoverydesk/esign/internal/app"
	"github.com/recoverydesk/esign/internal/config"
)

func getDocumentKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-document-key",
			Usage: "Create the next document key version, wrapped by KMS_KEY_URI",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				documentKeyUseCase, err := container.DocumentKeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateDocumentKey(
					ctx,
					documentKeyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-document-keys",
			Usage: "List document key versions",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				documentKeyUseCase, err := container.DocumentKeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunListDocumentKeys(
					ctx,
					documentKeyUseCase,
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}

func getSignatureCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "expire-tokens",
			Usage: "Expire active tokens past their deadline",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   500,
					Usage:   "Maximum number of tokens to expire in this run",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				tokenUseCase, err := container.TokenUseCase()
				if err != nil {
					return err
				}

				return commands.RunExpireTokens(
					ctx,
					tokenUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "retry-generation",
			Usage: "Regenerate the sealed document of a completed token",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "token",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Signature token",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				completionUseCase, err := container.CompletionUseCase()
				if err != nil {
					return err
				}

				return commands.RunRetryGeneration(
					ctx,
					completionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("token"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "verify-document",
			Usage: "Check the integrity hash of a stored document",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Document ID (UUID)",
				},
				&cli.BoolFlag{
					Name:    "decrypt",
					Aliases: []string{"d"},
					Usage:   "Also decrypt the document with its key version",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				completionUseCase, err := container.CompletionUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifyDocument(
					ctx,
					completionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.Bool("decrypt"),
					cmd.String("format"),
				)
			},
		},
	}
}
