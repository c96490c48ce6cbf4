package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/claims"
	"github.com/prepdeck/membership/pkg/config"
	"github.com/prepdeck/membership/pkg/dedupe"
	"github.com/prepdeck/membership/pkg/errlog"
	"github.com/prepdeck/membership/pkg/httpserver"
	"github.com/prepdeck/membership/pkg/logger"
	"github.com/prepdeck/membership/pkg/membership"
	mongoconn "github.com/prepdeck/membership/pkg/mongo"
	"github.com/prepdeck/membership/pkg/ratelimit"
	redisconn "github.com/prepdeck/membership/pkg/redis"
	"github.com/prepdeck/membership/pkg/schedule"
	svcmembership "github.com/prepdeck/membership/svc/membership"
)

type appConfig struct {
	ServiceName  string     `env:"SERVICE_NAME" envDefault:"membership"`
	DatabaseName string     `env:"MONGODB_DATABASE" envDefault:"membership"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat    string     `env:"LOG_FORMAT" envDefault:"json"`

	// SweepAt is the UTC wall time of the nightly expiry sweep,
	// expressed as an offset from midnight.
	SweepAt time.Duration `env:"EXPIRY_SWEEP_AT" envDefault:"3h"`

	// BillingRateLimit caps checkout and portal requests per user per window.
	BillingRateLimit  int           `env:"BILLING_RATE_LIMIT" envDefault:"40"`
	BillingRatePeriod time.Duration `env:"BILLING_RATE_PERIOD" envDefault:"1m"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		appCfg    appConfig
		mongoCfg  mongoconn.Config
		redisCfg  redisconn.Config
		stripeCfg billing.StripeConfig
		httpCfg   httpserver.Config
		dedupeCfg dedupe.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&stripeCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&dedupeCfg)

	log := logger.New(
		logger.WithLevel(appCfg.LogLevel),
		logger.WithFormat(logger.Format(appCfg.LogFormat)),
		logger.WithService(appCfg.ServiceName),
	)
	slog.SetDefault(log)

	mongoClient, err := mongoconn.New(ctx, mongoCfg)
	if err != nil {
		log.Error("mongodb connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(appCfg.DatabaseName)

	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("redis connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	errStore := errlog.NewMongoStore(db.Collection("error_logs"))
	if err := errStore.EnsureIndexes(ctx); err != nil {
		log.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	errs := errlog.New(errStore, errlog.Config{}, log)

	store := membership.NewMongoStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider, err := billing.NewStripeProvider(stripeCfg)
	if err != nil {
		log.Error("stripe setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sync := claims.NewSynchronizer(claims.NewMongoProvider(db), log)
	deduper := dedupe.NewRedisDeduper(redisClient, dedupeCfg)

	service := svcmembership.NewService(store, provider, sync,
		svcmembership.WithDeduper(deduper),
		svcmembership.WithErrorLog(errs),
		svcmembership.WithLogger(log),
	)

	runner := schedule.NewRunner(schedule.WithLogger(log))
	if err := service.RegisterJobs(runner, appCfg.SweepAt); err != nil {
		log.Error("job registration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go func() {
		if err := runner.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("schedule runner stopped", slog.String("error", err.Error()))
		}
	}()

	limiter, err := ratelimit.New(
		ratelimit.NewMongoStore(mongoClient, db.Collection(ratelimit.DefaultCollection)),
		ratelimit.Config{
			Name:     "billing",
			MaxCalls: appCfg.BillingRateLimit,
			Period:   appCfg.BillingRatePeriod,
		},
	)
	if err != nil {
		log.Error("rate limiter setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	limitMw := ratelimit.Middleware(limiter, ratelimit.KeyByHeader(userIDHeader),
		ratelimit.WithOnLimitReached(func(r *http.Request, qualifier string, result *ratelimit.Result) {
			errs.Report(r.Context(), "RateLimit",
				fmt.Errorf("billing quota exhausted for %s (%s %s)", qualifier, r.Method, r.URL.Path),
				errlog.WithSeverity(errlog.SeverityLow),
				errlog.WithHumanMessage("A caller hit the billing rate limit"))
		}))

	handler := svcmembership.NewHandler(service, userFromRequest, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log,
		mongoconn.Healthcheck(mongoClient),
		redisconn.Healthcheck(redisClient),
	))
	r.Mount("/", handler.Routes(limitMw))

	if err := httpserver.New(httpCfg, log).Run(ctx, r); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// userIDHeader carries the authenticated user id, set by the gateway
// after token verification. The service is not internet-facing.
const userIDHeader = "X-User-ID"

func userFromRequest(r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	return userID, userID != ""
}
