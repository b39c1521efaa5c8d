package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cookiedrop/kitchenhub/internal/auth"
	"github.com/cookiedrop/kitchenhub/internal/config"
)

func token(_ context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(config.LoadOptions{Path: cmd.String("config")})
	if err != nil {
		return err
	}

	secret := cfg.Auth.Secret()
	if secret == "" {
		return fmt.Errorf("no signing secret: set %s", cfg.Auth.SecretEnv)
	}

	signed, err := auth.IssueToken(secret, cfg.Auth.Issuer, auth.Identity{
		UserID:    cmd.Int64("user"),
		KitchenID: cmd.Int64("kitchen"),
	}, cmd.Duration("ttl"), time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, signed)
	return nil
}
