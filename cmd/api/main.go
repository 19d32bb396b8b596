package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/medbill/internal/app"
	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/chargemaster"
	"github.com/noah-isme/medbill/internal/config"
	"github.com/noah-isme/medbill/internal/health"
	"github.com/noah-isme/medbill/internal/money"
	"github.com/noah-isme/medbill/internal/obs"
	"github.com/noah-isme/medbill/internal/quote"
	"github.com/noah-isme/medbill/internal/ratelimit"
	"github.com/noah-isme/medbill/internal/security"
	"github.com/noah-isme/medbill/internal/surcharge"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "medbill-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.RunMigrations {
		if err := app.MigrateChargeMaster(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate charge master")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := app.OpenDatabase(ctx, cfg.DatabaseURL, "medbill-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	redisClient, err := app.OpenRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	rateLimiter, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	deps := &app.Dependencies{DB: pool, Redis: redisClient, Validator: quote.NewValidator(), Limiter: rateLimiter}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	store := chargemaster.NewStore(deps.DB)
	charges, err := chargemaster.NewService(chargemaster.ServiceConfig{
		Source: store,
		Writer: store,
		Cache:  chargemaster.NewCache(deps.Redis, cfg.ChargeCacheTTL),
		Logger: logger.With().Str("component", "chargemaster").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise charge master")
	}

	fees, err := surcharge.FromConfig(surchargeOverrides(cfg.Surcharges))
	if err != nil {
		logger.Fatal().Err(err).Msg("load surcharge catalog")
	}

	quoteService, err := quote.NewService(quote.ServiceConfig{
		Charges: charges,
		Fees:    fees,
		Logger:  logger.With().Str("component", "quote").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}
	quoteHandler := &quote.Handler{Service: quoteService, Validate: deps.Validator}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsCSV), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		{Name: "db", Timeout: cfg.Obs.ReadyDBTimeout, Check: deps.DB.Ping},
		{Name: "redis", Timeout: cfg.Obs.ReadyRedisTimeout, Check: func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(ratelimit.Handler{
			Limiter: deps.Limiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
		}.Middleware)

		v.Post("/payments/resolve", quoteHandler.ResolvePayment)
		v.Route("/{module}", func(m chi.Router) {
			m.Post("/line-items/quote", quoteHandler.QuoteLine)
			m.Post("/bills/quote", quoteHandler.QuoteBill)
			m.Get("/surcharges", quoteHandler.Surcharges)
			m.Get("/charges", quoteHandler.Charges)
			m.Get("/charges/{id}", quoteHandler.Charge)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("currency", cfg.CurrencyCode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	waitForShutdown(srv, cfg.ShutdownTimeout, logger)
}

func waitForShutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	health.SetReady(false)
	logger.Info().Msg("server draining")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func surchargeOverrides(fees []config.SurchargeFee) []surcharge.Override {
	out := make([]surcharge.Override, 0, len(fees))
	for _, f := range fees {
		out = append(out, surcharge.Override{Module: billing.Module(f.Module), Code: f.Code, Amount: money.FromMinor(f.Amount)})
	}
	return out
}
