package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"stockchat/db"
	"stockchat/internal/config"
	"stockchat/internal/ingest"
	"stockchat/internal/repository"

	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file      string
		backend   string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a fund constituents CSV into the fund store",
		Long: `Reads a constituents CSV (one row per fund constituent, with a Symbol column)
and inserts every row as a document in the configured fund store.
Example: ingest --file constituents.csv --backend mongo`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), file, backend, batchSize)
		},
	}

	cmd.Flags().StringVar(&file, "file", "constituents.csv", "CSV file to load")
	cmd.Flags().StringVar(&backend, "backend", "", "fund backend: mongo or postgres (defaults to FUND_BACKEND)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "records per insert")

	return cmd
}

func run(ctx context.Context, file, backend string, batchSize int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Read()
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Fund.Backend = backend
	}
	if err := cfg.ValidateFunds(); err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("the file %s was not found: %w", file, err)
	}
	defer f.Close()

	records, err := ingest.ReadConstituents(f)
	if err != nil {
		return fmt.Errorf("extract %s: %w", file, err)
	}
	slog.Info("extracted rows", "count", len(records), "file", file)

	var writer ingest.FundWriter
	var target string

	switch cfg.Fund.Backend {
	case config.BackendPostgres:
		pg, err := db.ConnectPostgres(cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect to Postgres: %w", err)
		}
		defer pg.Close()

		repo := repository.NewPostgresFundRepository(pg)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("create fund_record table: %w", err)
		}
		writer, target = repo, "fund_record"
	default:
		client, err := db.ConnectMongo(ctx, cfg.MongoDB.URI)
		if err != nil {
			return fmt.Errorf("connect to MongoDB: %w", err)
		}
		defer func() {
			client.Disconnect(context.Background())
			slog.Info("MongoDB connection closed")
		}()

		coll := client.Database(cfg.MongoDB.FundDatabase).Collection(cfg.MongoDB.FundCollection)
		writer, target = repository.NewFundRepository(coll), coll.Name()
	}

	n, err := ingest.Load(ctx, writer, records, batchSize)
	if err != nil {
		return err
	}

	slog.Info("loaded records", "count", n, "backend", cfg.Fund.Backend, "collection", target)
	return nil
}
