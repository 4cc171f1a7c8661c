package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz feeds, used when no feed paths are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 8, "concurrent upserts")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate feeds without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	feeds := flag.Args()
	if len(feeds) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			slog.Error("list feeds", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sort.Strings(matches)
		feeds = matches
	}
	if len(feeds) == 0 {
		slog.Error("no feeds found", slog.String("data_dir", dataDir))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feeds, databaseURL, workers, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, feeds []string, databaseURL string, workers int, dryRun bool) error {
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: one bloom filter of SKUs per feed.
	slog.Info("pass 1: building bloom filters", slog.Int("feeds", len(feeds)))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: parse records, setting aside SKUs that may repeat in a later feed.
	slog.Info("pass 2: parsing feeds")

	jewels, dups, err := collectJewels(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "collect jewels")
	}
	for _, d := range dups {
		slog.Warn("duplicate sku, later feed wins",
			slog.String("sku", d.SKU),
			slog.String("dropped", d.Dropped),
			slog.String("kept", d.Kept),
		)
	}

	slog.Info("jewels to import", slog.Int("count", len(jewels)), slog.Int("duplicates", len(dups)))

	if dryRun || len(jewels) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeJewels(ctx, postgres.NewJewelRepository(pool), jewels, workers); err != nil {
		return errors.Wrap(err, "write jewels to database")
	}

	return nil
}

// upserter stores a jewel keyed by SKU, reporting whether it was new.
type upserter interface {
	UpsertBySKU(ctx context.Context, j *catalog.Jewel) (bool, error)
}

// writeJewels upserts jewels with at most workers concurrent statements.
func writeJewels(ctx context.Context, repo upserter, jewels []catalog.Jewel, workers int) error {
	slog.Info("writing jewels to database", slog.Int("count", len(jewels)), slog.Int("workers", workers))

	var inserted, updated atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range jewels {
		j := &jewels[i]
		g.Go(func() error {
			created, err := repo.UpsertBySKU(ctx, j)
			if err != nil {
				return err
			}
			if created {
				inserted.Add(1)
			} else {
				updated.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("write complete",
		slog.Int64("inserted", inserted.Load()),
		slog.Int64("updated", updated.Load()),
	)

	return nil
}
