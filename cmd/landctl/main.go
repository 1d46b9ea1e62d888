package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"landadmin/internal/app"
	identitymodels "landadmin/internal/identity/models"
	"landadmin/internal/landtransfer/preload"
	"landadmin/internal/platform/config"
	"landadmin/internal/platform/logger"
	"landadmin/internal/platform/postgres"
	id "landadmin/pkg/domain"
)

var logLevel string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "landctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landctl",
		Short: "Land administration operations CLI",
		Long: `landctl runs operational tasks against the configured backends: schema migrations,
demo data seeding, token minting for local testing, outbox relaying and cache preloading.
Configuration is read from the same environment variables as the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newTokenCmd(),
		newRelayCmd(),
		newPreloadCmd(),
	)
	return cmd
}

// loadConfig reads configuration and builds the CLI logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New("text", logLevel), nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(func(cfg config.Config, log *slog.Logger) error {
					return migrateUp(cmd.Context(), cfg, log)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(func(cfg config.Config, log *slog.Logger) error {
					db, err := postgres.Open(cmd.Context(), cfg.Database)
					if err != nil {
						return err
					}
					defer db.Close()
					if err := postgres.MigrateDown(db); err != nil {
						return err
					}
					log.Info("migrations rolled back")
					return nil
				})
			},
		},
	)
	return cmd
}

func withDatabase(fn func(config.Config, *slog.Logger) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return fn(cfg, log)
}

func migrateUp(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.Migrate(db, log)
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		Long: `Mint a signed access token for local testing. The role claim is informational:
the API resolves role and district from the identity store on every request.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			uid, err := id.ParseUserID(userID)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if role == "" {
				user, err := a.Users.FindByID(cmd.Context(), uid)
				if err != nil {
					return fmt.Errorf("look up user %s: %w", uid, err)
				}
				role = user.Role.String()
			} else if _, err := identitymodels.ParseRole(role); err != nil {
				return err
			}
			token, err := a.Tokens.GenerateAccessToken(uid, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id the token is issued for")
	cmd.Flags().StringVar(&role, "role", "", "Role claim; looked up from the store when empty")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRelayCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish outbox events to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Relay == nil {
				return errors.New("relay needs both DATABASE_URL and KAFKA_BROKERS")
			}
			if once {
				n, err := a.Relay.RelayOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "relayed %d events\n", n)
				return nil
			}
			if err := a.Relay.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Relay a single batch and exit")
	return cmd
}

func newPreloadCmd() *cobra.Command {
	var (
		limit  int
		inline bool
	)
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Warm the transfer cache with recent transfers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if limit < 1 {
				return errors.New("--limit must be positive")
			}
			if !inline {
				if !cfg.Queue.Enabled() {
					return errors.New("QUEUE_REDIS_ADDR is required unless --inline is set")
				}
				client := preload.NewClient(cfg.Queue)
				defer client.Close()
				if err := client.EnqueuePreload(cmd.Context(), limit); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "preload scheduled")
				return nil
			}

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Transfers.Preload(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cached %d transfers\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Number of recent transfers to cache")
	cmd.Flags().BoolVar(&inline, "inline", false, "Run the preload in this process instead of enqueueing it")
	return cmd
}
