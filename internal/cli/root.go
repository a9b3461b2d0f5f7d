// Package cli implements contentctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/internal/publish"
	"github.com/kiranshivaraju/contentpilot/internal/pushlive"
	"github.com/kiranshivaraju/contentpilot/internal/recovery"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// Backend is the data access the commands need.
type Backend interface {
	recovery.Store
	pushlive.Store
	GetDefaultProfile(ctx context.Context) (*models.Profile, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, profileID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error
	Close()
}

// Migrator runs schema migrations.
type Migrator struct {
	Up      func(databaseURL, dir string) error
	Down    func(databaseURL, dir string, steps int) error
	Version func(databaseURL, dir string) (uint, bool, error)
}

// Env carries the command dependencies so tests can replace them.
type Env struct {
	Open      func(ctx context.Context, databaseURL string) (Backend, error)
	Migrate   Migrator
	Publisher func(cfg config.PublishConfig) publish.Client
	KeyCost   int
}

// DefaultEnv talks to Postgres and the real publishing provider.
func DefaultEnv() Env {
	return Env{
		Open: openPostgres,
		Migrate: Migrator{
			Up:      store.RunMigrations,
			Down:    store.RollbackMigrations,
			Version: store.MigrationVersion,
		},
		Publisher: func(cfg config.PublishConfig) publish.Client { return publish.NewHTTPClient(cfg) },
		KeyCost:   bcrypt.DefaultCost,
	}
}

type pgBackend struct {
	*store.PostgresStore
	close func()
}

func (b *pgBackend) Close() { b.close() }

func openPostgres(ctx context.Context, databaseURL string) (Backend, error) {
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:             databaseURL,
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return &pgBackend{PostgresStore: store.NewPostgresStore(pool), close: pool.Close}, nil
}

type rootOptions struct {
	databaseURL string
	logLevel    string
}

// NewRootCmd builds the contentctl command tree.
func NewRootCmd(env Env) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "contentctl",
		Short: "Operate a ContentPilot deployment",
		Long: `contentctl runs operator tasks against the ContentPilot database:
schema migrations, the recovery sweep, pushing a plan live and API key management.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: parseLevel(opts.logLevel),
			})))
			if opts.databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newMigrateCmd(env, opts),
		newPurgeCmd(env, opts),
		newPushLiveCmd(env, opts),
		newKeysCmd(env, opts),
	)
	return cmd
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, env Env, opts *rootOptions, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := env.Open(ctx, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer b.Close()
	return fn(ctx, b)
}
