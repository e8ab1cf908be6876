package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"stockchat/db"
	"stockchat/internal/config"
	"stockchat/internal/repository"

	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert flat human/bot histories into turn groups",
		Long: `Rewrites every history document stored as a flat list of
{"type": "human"|"bot", "content": ...} entries into the turn-group layout
[{"0": query}, {"1": answer}] read by the API, keeping the most recent turns.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read()
			if err != nil {
				return err
			}
			if cfg.MongoDB.URI == "" {
				return fmt.Errorf("MONGODB_URI not found in environment variables")
			}

			ctx := cmd.Context()
			client, err := db.ConnectMongo(ctx, cfg.MongoDB.URI)
			if err != nil {
				return fmt.Errorf("connect to MongoDB: %w", err)
			}
			defer client.Disconnect(ctx)

			coll := client.Database(cfg.MongoDB.HistoryDatabase).Collection(cfg.MongoDB.HistoryCollection)
			repo := repository.NewHistoryRepository(coll, cfg.History.Window)

			n, err := repo.MigrateFlat(ctx)
			if err != nil {
				return err
			}

			slog.Info("history migration finished", "documents", n, "window", cfg.History.Window)
			return nil
		},
	}

	if err := cmd.Execute(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}
