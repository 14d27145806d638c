package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/config"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/infra/api"
	"opticalfiber-backend/internal/infra/db/postgres"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/redis"
)

// This script resets the database to a predictable state for manual
// end-to-end testing and prints bearer tokens for the seeded staff.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed bearer tokens")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	logger.Info().Msg("--- Starting E2E Environment Setup ---")

	logger.Info().Msg("[1/3] Wiping all existing database data...")
	companies, err := existingCompanies(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list companies")
	}
	if _, err := pool.Exec(ctx, `TRUNCATE companies, offices, fiber_routes, payments RESTART IDENTITY CASCADE;`); err != nil {
		logger.Fatal().Err(err).Msg("failed to truncate tables")
	}
	cache := redis.NewRouteCache(redisClient, cfg.Redis.TTL, logger)
	for _, id := range companies {
		if err := cache.Invalidate(ctx, id); err != nil {
			logger.Warn().Err(err).Str("company_id", id).Msg("failed to drop cached route list")
		}
	}

	logger.Info().Msg("[2/3] Seeding a company with offices...")
	companyID, offices, err := seedCompany(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed company")
	}

	logger.Info().Msg("[3/3] Minting staff tokens...")
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, logger)
	printTokens(auth, companyID, *tokenTTL, logger)

	for name, id := range offices {
		fmt.Printf("office %-8s %s\n", name, id)
	}
	logger.Info().Str("company_id", companyID).Msg("--- E2E Environment Setup Complete ---")
}

func existingCompanies(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM companies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func seedCompany(ctx context.Context, pool *pgxpool.Pool) (string, map[string]string, error) {
	companyID := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO companies (id, name, email, phone) VALUES ($1, $2, $3, $4)`,
		companyID, "Acme Fiber", "ops@acme.test", "9999999999"); err != nil {
		return "", nil, err
	}
	offices := map[string]string{}
	for _, o := range []struct {
		name     string
		kind     model.OfficeType
		lat, lng float64
	}{
		{"head", model.OfficeTypeHead, 12.9716, 77.5946},
		{"branch", model.OfficeTypeBranch, 13.0827, 80.2707},
	} {
		id := uuid.NewString()
		if _, err := pool.Exec(ctx,
			`INSERT INTO offices (id, company_id, name, office_type, latitude, longitude) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, companyID, o.name, string(o.kind), o.lat, o.lng); err != nil {
			return "", nil, err
		}
		offices[o.name] = id
	}
	return companyID, offices, nil
}

func printTokens(auth *api.AuthManager, companyID string, ttl time.Duration, logger *zerolog.Logger) {
	for _, s := range []struct {
		name string
		role model.StaffRole
	}{
		{"Asha Admin", model.StaffRoleAdmin},
		{"Ravi Engineer", model.StaffRoleEngineer},
	} {
		p, err := model.NewPrincipal(uuid.NewString(), companyID, s.role, s.name)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid principal")
		}
		tok, err := auth.Mint(p, ttl)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to mint token")
		}
		fmt.Printf("%-8s %s\n", s.role, tok)
	}
}
