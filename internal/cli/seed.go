package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"pushluck-trivia-service/internal/config"
	"pushluck-trivia-service/internal/content"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewSeedCmd loads the bundled packs into Postgres so the remote catalog can
// take over from the embedded one.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the packs table with the bundled catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	packs, err := content.BundledPacks()
	if err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	for _, pack := range packs {
		data, err := json.Marshal(pack)
		if err != nil {
			return fmt.Errorf("encode pack %s: %w", pack.ID, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO packs (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
			pack.ID, string(data)); err != nil {
			return fmt.Errorf("seed pack %s: %w", pack.ID, err)
		}
		log.Printf("seeded pack %s (%d questions)", pack.ID, len(pack.Questions))
	}
	return nil
}
