package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"meeting-scheduler/internal/app"
	"meeting-scheduler/internal/calsync"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the owner with Mon-Fri 09:00-17:00 hours if none exists.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Value: "owner@example.com", Usage: "Owner email."},
			&cli.StringFlag{Name: "name", Value: "Owner", Usage: "Owner display name."},
			&cli.IntFlag{Name: "buffer", Value: -1, Usage: "Buffer minutes (defaults to DEFAULT_BUFFER_MINUTES)."},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			buffer := c.Int("buffer")
			if buffer < 0 {
				buffer = cfg.DefaultBufferMinutes
			}
			if buffer > app.MaxBufferMinutes {
				return app.ErrInvalidBuffer
			}

			pool, err := app.OpenPool(c.Context, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}
			defer pool.Close()

			store := app.NewPgStore(pool, calsync.NewRepository(pool), cfg.CalendarSyncMaxAttempts)
			owner, created, err := store.SeedDemoOwner(c.Context, app.Owner{
				ID:        uuid.NewString(),
				Email:     c.String("email"),
				Name:      c.String("name"),
				Timezone:  "UTC",
				CreatedAt: time.Now().UTC(),
			}, buffer)
			if err != nil {
				return fmt.Errorf("seed owner: %w", err)
			}
			if !created {
				log.Info("owner already exists", zap.String("owner_id", owner.ID), zap.String("email", owner.Email))
				return nil
			}
			log.Info("owner created", zap.String("owner_id", owner.ID), zap.Int("buffer_minutes", buffer))
			return nil
		},
	}
}
