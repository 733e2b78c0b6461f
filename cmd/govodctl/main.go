package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/danribes/mystic-ecom-sub011/cache"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/danribes/mystic-ecom-sub011/core/webhook"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	rootCmd := &cobra.Command{
		Use:          "govodctl",
		Short:        "Operator tasks for the shop backend",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd(log))
	rootCmd.AddCommand(eventsCmd(log))
	rootCmd.AddCommand(refundCmd(log))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the same GOVOD environment as the server. Command line
// arguments belong to cobra, so they are hidden from conf.
func loadConfig() (config.Config, error) {
	args := os.Args
	os.Args = os.Args[:1]
	defer func() { os.Args = args }()

	var cfg config.Config
	if _, err := conf.Parse("GOVOD", &cfg); err != nil {
		return config.Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func migrateCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if err := database.Migrate(cfg.DB); err != nil {
				return err
			}

			log.Info("database is up to date")
			return nil
		},
	}
}

func eventsCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the processed webhook event markers",
	}

	withGuard := func(fn func(ctx context.Context, g *webhook.Guard, id string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rdb := cache.Open(cfg.Redis)
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			return fn(ctx, webhook.NewGuard(rdb, log), args[0])
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <event-id>",
		Short: "Report whether an event is marked as processed",
		Args:  cobra.ExactArgs(1),
		RunE: withGuard(func(ctx context.Context, g *webhook.Guard, id string) error {
			done, err := g.Lookup(ctx, id)
			if err != nil {
				return err
			}

			if done {
				fmt.Printf("%s: processed\n", id)
			} else {
				fmt.Printf("%s: not processed\n", id)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <event-id>",
		Short: "Drop the marker so the next delivery is handled again",
		Args:  cobra.ExactArgs(1),
		RunE: withGuard(func(ctx context.Context, g *webhook.Guard, id string) error {
			if err := g.Forget(ctx, id); err != nil {
				return err
			}

			log.WithField("event_id", id).Info("event marker removed")
			return nil
		}),
	})

	return cmd
}

func refundCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "refund <order-id>",
		Short: "Revert a completed order after a refund made outside the shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("failed to open db connection: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			if _, err := order.Fetch(ctx, db, args[0]); err != nil {
				if errors.Is(err, database.ErrDBNotFound) {
					return fmt.Errorf("order[%s] not found", args[0])
				}
				return err
			}

			p := webhook.NewPipeline(webhook.PipelineConfig{DB: db, Log: log})
			return p.HandleRefund(ctx, args[0])
		},
	}
}
