package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCatalog(ctx, pool)
	seedRates(ctx, pool)
	seedSettings(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	products := []struct {
		title, slug, tier, origin string
		price, weight             int64
		length, width, height     float64
		stackable                 bool
		stock                     int
	}{
		{"Panier artisanal A", "panier-a", "standard", "MA", 3500, 500, 20, 20, 20, false, 40},
		{"Tajine émaillé", "tajine-emaille", "fragile", "MA", 5900, 1800, 30, 30, 22, false, 25},
		{"Coussin berbère", "coussin-berbere", "standard", "MA", 2800, 700, 45, 45, 12, true, 80},
		{"Savon noir 500g", "savon-noir-500", "standard", "FR", 900, 550, 10, 8, 8, true, 200},
		{"Miroir laiton", "miroir-laiton", "fragile", "FR", 7400, 2400, 60, 40, 6, false, 10},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (title, slug, price_minor, weight_grams, length_cm, width_cm, height_cm, stackable, handling_tier, origin_warehouse, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (slug) DO UPDATE SET
				price_minor = EXCLUDED.price_minor,
				weight_grams = EXCLUDED.weight_grams,
				stock = EXCLUDED.stock`,
			p.title, p.slug, p.price, p.weight, p.length, p.width, p.height, p.stackable, p.tier, p.origin, p.stock,
		)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.slug, err)
		}
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO product_variants (product_id, title, price_minor, weight_grams, stock)
		SELECT p.id, v.title, v.price_minor, v.weight_grams, v.stock
		FROM products p
		JOIN (VALUES
			('panier-a', 'Grand format', 4200::bigint, 700::bigint, 20),
			('coussin-berbere', 'Laine épaisse', NULL::bigint, 900::bigint, 30)
		) AS v(slug, title, price_minor, weight_grams, stock) ON v.slug = p.slug
		ON CONFLICT DO NOTHING`)
	if err != nil {
		log.Fatalf("Failed to seed variants: %v", err)
	}
	log.Println("Seeded catalog")
}

func seedRates(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `DELETE FROM shipping_rates`)
	if err != nil {
		log.Fatalf("Failed to reset rates: %v", err)
	}
	rates := []struct {
		origin, dest string
		min, max     int64
		price        int64
	}{
		{"MA", "FR", 0, 999, 2600},
		{"MA", "FR", 1000, 2999, 3400},
		{"MA", "FR", 3000, 9999, 5200},
		{"FR", "FR", 0, 1999, 690},
		{"FR", "FR", 2000, 9999, 990},
	}
	for _, r := range rates {
		_, err := pool.Exec(ctx, `
			INSERT INTO shipping_rates (origin_warehouse, destination_country, min_weight_grams, max_weight_grams, price_minor)
			VALUES ($1, $2, $3, $4, $5)`,
			r.origin, r.dest, r.min, r.max, r.price,
		)
		if err != nil {
			log.Fatalf("Failed to seed rate %s->%s: %v", r.origin, r.dest, err)
		}
	}
	log.Println("Seeded shipping rates")
}

func seedSettings(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
		INSERT INTO shop_settings (key, value)
		VALUES ('shipping_rules', '{"freeShippingThreshold": 8000, "isActive": true}'::jsonb)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`)
	if err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}
	log.Println("Seeded shop settings")
}
