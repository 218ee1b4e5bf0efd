// Command seeder loads sample plans and a bootstrap admin into an empty database.
package main

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/app"
	"github.com/noah-isme/plan-configurator/internal/auth"
	"github.com/noah-isme/plan-configurator/internal/obs"
)

type seedPlan struct {
	Title          string
	Subtitle       string
	ActualPrice    string
	DiscountPrice  string
	Speed          string
	Terms          []string
	Recommendation string
	Categories     []string
}

var plans = []seedPlan{
	{
		Title:       "Basic Evening Speed",
		Subtitle:    "NBN 25",
		ActualPrice: "69.99",
		Speed:       "25/10 Mbps",
		Terms:       []string{"No lock-in contract", "Typical evening speed 25 Mbps"},
		Categories:  []string{"fttp", "fttc", "fttn", "hfc"},
	},
	{
		Title:          "Standard Plus",
		Subtitle:       "NBN 50",
		ActualPrice:    "99.99",
		DiscountPrice:  "79.99",
		Speed:          "50/20 Mbps",
		Terms:          []string{"No lock-in contract", "Discount applies for the first 6 months"},
		Recommendation: "Most popular",
		Categories:     []string{"fttp", "fttc", "fttn", "hfc"},
	},
	{
		Title:         "Home Fast",
		Subtitle:      "NBN 100",
		ActualPrice:   "109.99",
		DiscountPrice: "94.99",
		Speed:         "100/20 Mbps",
		Terms:         []string{"No lock-in contract"},
		Categories:    []string{"fttp", "fttc", "hfc"},
	},
	{
		Title:       "Superfast",
		Subtitle:    "NBN 250",
		ActualPrice: "129.99",
		Speed:       "250/25 Mbps",
		Terms:       []string{"No lock-in contract", "Requires FTTP or HFC"},
		Categories:  []string{"fttp", "hfc"},
	},
	{
		Title:       "Fixed Wireless Plus",
		Subtitle:    "Fixed Wireless",
		ActualPrice: "84.99",
		Speed:       "75/10 Mbps",
		Terms:       []string{"No lock-in contract"},
		Categories:  []string{"fixed-wireless"},
	},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(app.EnvOrDefault("OBS_LOG_FORMAT", "console"), "info").With().Str("component", "seeder").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if err := seedPlans(ctx, db, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed plans")
	}
	if err := seedAdmin(ctx, db, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed admin")
	}
	logger.Info().Msg("seeding completed")
}

// seedPlans inserts the sample catalog unless products already exist.
func seedPlans(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		logger.Info().Int("existing", count).Msg("products present; skipping plans")
		return nil
	}
	for i, p := range plans {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (title, subtitle, actual_price, discount_price, speed,
				terms_and_conditions, recommendation, categories, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.Title, nullable(p.Subtitle), nullable(p.ActualPrice), nullable(p.DiscountPrice), nullable(p.Speed),
			pq.Array(p.Terms), nullable(p.Recommendation), pq.Array(p.Categories), (i+1)*10,
		)
		if err != nil {
			return err
		}
	}
	logger.Info().Int("count", len(plans)).Msg("plans seeded")
	return nil
}

// seedAdmin creates the bootstrap admin with every permission. The password comes
// from SEED_ADMIN_PASSWORD; the row is left untouched when the email exists.
func seedAdmin(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	email := strings.ToLower(app.EnvOrDefault("SEED_ADMIN_EMAIL", "admin@example.com"))
	password := app.EnvOrDefault("SEED_ADMIN_PASSWORD", "")
	if len(password) < 12 {
		logger.Warn().Msg("SEED_ADMIN_PASSWORD missing or shorter than 12 characters; skipping admin")
		return nil
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO admins (email, name, password_hash, permissions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING`,
		email, app.EnvOrDefault("SEED_ADMIN_NAME", "Administrator"), hash, pq.Array([]string{auth.PermissionWildcard}),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Info().Str("email", email).Msg("admin already exists")
		return nil
	}
	logger.Info().Str("email", email).Msg("admin seeded")
	return nil
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
