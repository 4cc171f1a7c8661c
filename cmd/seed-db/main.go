package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/auth"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/coupon"
	"github.com/xenking/vejoias/internal/domain/user"
	"github.com/xenking/vejoias/internal/storage/postgres"
)

type seedFile struct {
	Categories []struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	} `json:"categories"`
	Jewels []struct {
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
	} `json:"jewels"`
	Coupons []struct {
		Code        string          `json:"code"`
		Type        string          `json:"type"`
		Value       decimal.Decimal `json:"value"`
		MinItems    int             `json:"min_items"`
		MaxUses     int             `json:"max_uses"`
		MaxDiscount decimal.Decimal `json:"max_discount"`
		Description string          `json:"description"`
	} `json:"coupons"`
}

type admin struct {
	email    string
	password string
}

func main() {
	var (
		databaseURL string
		seedPath    string
		staff       admin
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.StringVar(&staff.email, "admin-email", "admin@vejoias.com.br", "staff account email")
	flag.StringVar(&staff.password, "admin-password", "", "staff account password (or VEJOIAS_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if staff.password == "" {
		staff.password = os.Getenv("VEJOIAS_SEED_ADMIN_PASSWORD")
	}
	if len(staff.password) < 8 {
		slog.Error("admin password of at least 8 characters is required: set --admin-password or VEJOIAS_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, staff); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string, staff admin) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCategories(ctx, postgres.NewCategoryRepository(pool), &seed); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedJewels(ctx, postgres.NewJewelRepository(pool), &seed); err != nil {
		return errors.Wrap(err, "seed jewels")
	}
	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), &seed); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedStaff(ctx, postgres.NewUserRepository(pool), staff); err != nil {
		return errors.Wrap(err, "seed staff user")
	}

	return nil
}

func seedCategories(ctx context.Context, repo *postgres.CategoryRepository, seed *seedFile) error {
	slog.Info("upserting categories", slog.Int("count", len(seed.Categories)))

	for _, c := range seed.Categories {
		cat := catalog.Category{Name: c.Name, Slug: c.Slug, Description: c.Description}
		if cat.Slug == "" {
			cat.Slug = catalog.Slugify(cat.Name)
		}
		if err := repo.UpsertCategory(ctx, &cat); err != nil {
			return errors.Wrapf(err, "upsert category %s", cat.Slug)
		}

		slog.Info("upserted category", slog.Int64("id", cat.ID), slog.String("slug", cat.Slug))
	}

	return nil
}

func seedJewels(ctx context.Context, repo *postgres.JewelRepository, seed *seedFile) error {
	slog.Info("upserting jewels", slog.Int("count", len(seed.Jewels)))

	for _, s := range seed.Jewels {
		j := catalog.Jewel{
			SKU:          s.SKU,
			Name:         s.Name,
			Description:  s.Description,
			Price:        s.Price,
			Stock:        s.Stock,
			CategorySlug: s.Category,
			Material:     s.Material,
			WeightGrams:  s.WeightGrams,
			Dimensions:   s.Dimensions,
			ImageURL:     s.ImageURL,
			Featured:     s.Featured,
			Active:       true,
		}
		inserted, err := repo.UpsertBySKU(ctx, &j)
		if err != nil {
			return err
		}

		slog.Info("upserted jewel",
			slog.String("sku", j.SKU),
			slog.String("name", j.Name),
			slog.Bool("inserted", inserted),
		)
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, seed *seedFile) error {
	slog.Info("seeding coupons", slog.Int("count", len(seed.Coupons)))

	for _, c := range seed.Coupons {
		rule := coupon.Rule{
			Code:         coupon.NormalizeCode(c.Code),
			DiscountType: coupon.DiscountType(c.Type),
			Value:        c.Value,
			MinItems:     c.MinItems,
			MaxUses:      c.MaxUses,
			MaxDiscount:  c.MaxDiscount,
			Description:  c.Description,
			Active:       true,
		}
		if !rule.DiscountType.Valid() {
			return errors.Errorf("coupon %s: unknown discount type %q", rule.Code, c.Type)
		}
		if err := repo.Upsert(ctx, &rule); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rule.Code)
		}

		slog.Info("upserted coupon", slog.String("code", rule.Code), slog.String("description", rule.Description))
	}

	return nil
}

func seedStaff(ctx context.Context, repo *postgres.UserRepository, staff admin) error {
	slog.Info("seeding staff user", slog.String("email", staff.email))

	hash, err := auth.NewBcryptHasher().Hash(staff.password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u := user.User{
		Email:        user.NormalizeEmail(staff.email),
		PasswordHash: hash,
		FirstName:    "Administrador",
		Staff:        true,
		Active:       true,
	}
	if err := repo.Upsert(ctx, &u); err != nil {
		return err
	}

	slog.Info("upserted staff user", slog.Int64("id", u.ID), slog.String("email", u.Email))

	return nil
}
