package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/vejoias/internal/domain/catalog"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	maxLineSize   = 1 << 20
)

// feedRecord is one JSON line of a supplier feed.
type feedRecord struct {
	SKU         string              `json:"sku"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	Stock       int                 `json:"stock"`
	Category    string              `json:"category"`
	Material    string              `json:"material"`
	WeightGrams decimal.NullDecimal `json:"weight_grams"`
	Dimensions  string              `json:"dimensions"`
	ImageURL    string              `json:"image_url"`
	Featured    bool                `json:"featured"`
}

func (r *feedRecord) jewel() catalog.Jewel {
	return catalog.Jewel{
		SKU:          r.SKU,
		Name:         strings.TrimSpace(r.Name),
		Description:  r.Description,
		Price:        r.Price,
		Stock:        r.Stock,
		CategorySlug: catalog.Slugify(r.Category),
		Material:     r.Material,
		WeightGrams:  r.WeightGrams,
		Dimensions:   r.Dimensions,
		ImageURL:     r.ImageURL,
		Featured:     r.Featured,
		Active:       true,
	}
}

// duplicate is a SKU dropped because a later feed also carries it.
type duplicate struct {
	SKU     string
	Dropped string
	Kept    string
}

// feedResult holds what pass 2 found in a single feed.
type feedResult struct {
	// unique are records whose SKU is in no later feed.
	unique []catalog.Jewel
	// shadowed are records whose SKU may be in a later feed.
	shadowed map[string]catalog.Jewel
	// earlier are SKUs of this feed that may be in an earlier feed.
	earlier map[string]struct{}
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			if err := streamFeed(ctx, f, func(r *feedRecord) {
				filter.AddString(r.SKU)
				count++
			}); err != nil {
				return errors.Wrapf(err, "build filter for feed %d", i+1)
			}

			slog.Info("pass 1 complete", slog.String("feed", f), slog.Int("records", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectJewels parses every feed and resolves SKUs repeated across feeds
// in favour of the later feed. Bloom hits are confirmed against the other
// feed's own candidates, so false positives never drop a record.
func collectJewels(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]catalog.Jewel, []duplicate, error) {
	results := make([]feedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			res := feedResult{
				shadowed: make(map[string]catalog.Jewel),
				earlier:  make(map[string]struct{}),
			}
			// Within one feed the last line for a SKU wins.
			own := make(map[string]int)

			if err := streamFeed(ctx, f, func(r *feedRecord) {
				j := r.jewel()
				for k, filter := range filters {
					if k < i && filter.TestString(j.SKU) {
						res.earlier[j.SKU] = struct{}{}
						break
					}
				}
				for _, filter := range filters[i+1:] {
					if filter.TestString(j.SKU) {
						res.shadowed[j.SKU] = j
						return
					}
				}
				if idx, ok := own[j.SKU]; ok {
					res.unique[idx] = j
					return
				}
				own[j.SKU] = len(res.unique)
				res.unique = append(res.unique, j)
			}); err != nil {
				return errors.Wrapf(err, "scan feed %d", i+1)
			}

			slog.Info("pass 2 complete",
				slog.String("feed", f),
				slog.Int("unique", len(res.unique)),
				slog.Int("shadowed", len(res.shadowed)),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		jewels []catalog.Jewel
		dups   []duplicate
	)
	for i, res := range results {
		jewels = append(jewels, res.unique...)
		for sku, j := range res.shadowed {
			if kept, ok := laterFeed(results, i, sku); ok {
				dups = append(dups, duplicate{SKU: sku, Dropped: feeds[i], Kept: feeds[kept]})
				continue
			}
			jewels = append(jewels, j)
		}
	}
	return jewels, dups, nil
}

// laterFeed returns the last feed after i that carries sku.
func laterFeed(results []feedResult, i int, sku string) (int, bool) {
	for k := len(results) - 1; k > i; k-- {
		if _, ok := results[k].earlier[sku]; ok {
			return k, true
		}
	}
	return 0, false
}

// streamFeed opens a gzip-compressed JSON-lines feed and calls fn for each
// record with a SKU. Blank lines are skipped.
func streamFeed(ctx context.Context, path string, fn func(r *feedRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var line int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r feedRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		r.SKU = strings.TrimSpace(r.SKU)
		if r.SKU == "" {
			slog.Warn("record without sku skipped", slog.String("feed", path), slog.Int("line", line))
			continue
		}
		fn(&r)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
