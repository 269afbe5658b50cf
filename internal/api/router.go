package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/api/handler"
	"github.com/lottoloop/chain-custody/internal/api/middleware"
)

// Router wires the admin surface: scan status and trigger, account reads,
// pending ledger inspection, health and metrics.
type Router struct {
	logger   *zap.Logger
	db       *pgxpool.Pool
	redis    redis.Cmdable
	scanner  handler.ScanService
	accounts handler.AccountReader
	ledger   handler.LedgerReader
	rateRPS  int
}

func NewRouter(logger *zap.Logger, db *pgxpool.Pool, rdb redis.Cmdable, scanner handler.ScanService, accounts handler.AccountReader, ledger handler.LedgerReader, rateRPS int) *Router {
	return &Router{
		logger:   logger,
		db:       db,
		redis:    rdb,
		scanner:  scanner,
		accounts: accounts,
		ledger:   ledger,
		rateRPS:  rateRPS,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	scanHandler := handler.NewScanHandler(api.scanner)
	accountHandler := handler.NewAccountHandler(api.accounts, api.ledger)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminRateLimiter(api.rateRPS))

		r.Get("/v1/scan/status", scanHandler.GetStatus)
		r.Post("/v1/scan/trigger", scanHandler.Trigger)
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)
		r.Get("/v1/transactions/pending", accountHandler.ListPendingTransactions)
	})

	return r
}
