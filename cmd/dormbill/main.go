package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dormbill/internal/amqp"
	"dormbill/internal/auth"
	"dormbill/internal/cache"
	"dormbill/internal/cli"
	"dormbill/internal/config"
	"dormbill/internal/core"
	apphttp "dormbill/internal/http"
	"dormbill/internal/log"
	"dormbill/internal/metrics"
	"dormbill/internal/notify"
	"dormbill/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required to serve the API")
		os.Exit(1)
	}

	logger.Info("Starting dormbill", "port", cfg.Port, "db", cfg.SQLiteDBPath)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	notifier, closeNotifier := newNotifier(cfg, logger)
	defer closeNotifier()

	m := metrics.New()

	summaryCache := cache.NewLRUCache[services.DormerSummary](1000, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(summaryCache)

	summaries := services.NewSummaryService(store, summaryCache, m, logger)
	recorder := core.NewRecorder(
		core.WithPaymentMethods(cfg.PaymentMethods...),
		core.WithOverpayment(core.KindBill, cfg.OverpaymentPolicy()),
		core.WithOverpayment(core.KindFine, cfg.OverpaymentPolicy()),
	)
	svc := apphttp.Services{
		Ledgers: services.NewLedgerService(store, summaries, logger),
		Payments: services.NewPaymentService(store, recorder,
			services.WithNotifier(notifier),
			services.WithInvalidator(summaries),
			services.WithObserver(m),
			services.WithLogger(logger),
		),
		Summaries: summaries,
	}

	srv := apphttp.NewServer(svc, apphttp.Options{
		Addr:               ":" + cfg.Port,
		Auth:               auth.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthIssuer, 24*time.Hour),
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CurrencySymbol:     cfg.CurrencySymbol,
		Ready:              store.Ping,
	})

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cacheManager.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext()
		defer shutdownCancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// newNotifier publishes to the broker when AMQP_URL is set and otherwise
// only logs what would have been sent.
func newNotifier(cfg *config.Config, logger *log.Logger) (notify.Notifier, func()) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, notifications will only be logged")
		return notify.NewLogNotifier(logger), func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, notifications will only be logged", log.FieldError, err)
		return notify.NewLogNotifier(logger), func() {}
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return notify.NewQueueNotifier(client), func() { _ = client.Close() }
}
