package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/medbill/internal/app"
	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/chargemaster"
	"github.com/noah-isme/medbill/internal/config"
)

// sampleCharges mirrors the record shape each department screen stores.
var sampleCharges = map[billing.Module][]chargemaster.Record{
	billing.ModuleOPD: {
		{"id": "consult", "name": "General Consultation", "amount": "300.00", "taxPercent": "18"},
		{"id": "followup", "name": "Follow-up Visit", "amount": "150.00"},
	},
	billing.ModuleIPD: {
		{"id": "bed-general", "name": "General Ward Bed (per day)", "standardCharge": "1250.00", "taxPercent": "12"},
		{"id": "bed-icu", "name": "ICU Bed (per day)", "standardCharge": "6500.00", "taxPercent": "12"},
		{"id": "nursing", "name": "Nursing Care", "standardCharge": "800.00"},
	},
	billing.ModulePathology: {
		{"id": "cbc", "name": "Complete Blood Count", "price": "450.00"},
		{"id": "lipid", "name": "Lipid Profile", "price": "900.00", "tax": "5"},
	},
	billing.ModuleRadiology: {
		{"id": "xray-chest", "name": "Chest X-Ray", "price": "700.00", "taxPercent": "5"},
		{"id": "mri-brain", "name": "MRI Brain", "price": "8500.00", "taxPercent": "5"},
	},
	billing.ModuleAmbulance: {
		{"id": "bls", "name": "Basic Life Support Trip", "fare": "1500.00", "taxPercent": "5"},
		{"id": "als", "name": "Advanced Life Support Trip", "fare": "2500.00", "taxPercent": "5"},
	},
}

func main() {
	migrateFirst := flag.Bool("migrate", true, "apply charge master migrations before seeding")
	deactivate := flag.String("deactivate", "", "deactivate one charge given as <module>/<id> instead of seeding")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("tool", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	if *migrateFirst {
		if err := app.MigrateChargeMaster(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate charge master")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.OpenDatabase(ctx, cfg.DatabaseURL, "medbill-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()
	redisClient, err := app.OpenRedis(ctx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() { _ = redisClient.Close() }()

	store := chargemaster.NewStore(pool)
	charges, err := chargemaster.NewService(chargemaster.ServiceConfig{
		Source: store,
		Writer: store,
		Cache:  chargemaster.NewCache(redisClient, cfg.ChargeCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise charge master")
	}

	if *deactivate != "" {
		if err := deactivateCharge(ctx, charges, *deactivate); err != nil {
			logger.Fatal().Err(err).Str("charge", *deactivate).Msg("deactivate charge")
		}
		logger.Info().Str("charge", *deactivate).Msg("charge deactivated")
		return
	}

	total := 0
	for _, module := range billing.Modules() {
		normalized, err := chargemaster.NormalizeAll(module, sampleCharges[module])
		if err != nil {
			logger.Fatal().Err(err).Str("module", string(module)).Msg("normalise sample charges")
		}
		for _, charge := range normalized {
			if err := charges.Upsert(ctx, module, charge); err != nil {
				logger.Fatal().Err(err).Str("module", string(module)).Str("charge_id", charge.ID).Msg("upsert charge")
			}
		}
		total += len(normalized)
		logger.Info().Str("module", string(module)).Int("charges", len(normalized)).Msg("seeded module")
	}
	logger.Info().Int("charges", total).Msg("seeding completed")
}

func deactivateCharge(ctx context.Context, charges *chargemaster.Service, ref string) error {
	name, id, ok := strings.Cut(ref, "/")
	if !ok || strings.TrimSpace(id) == "" {
		return fmt.Errorf("expected <module>/<id>, got %q", ref)
	}
	module, err := billing.ParseModule(name)
	if err != nil {
		return err
	}
	return charges.Deactivate(ctx, module, strings.TrimSpace(id))
}
