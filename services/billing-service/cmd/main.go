// services/billing-service/cmd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/api"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/config"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/events"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/payment"
	stripeWebhook "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/payment/webhook/stripe"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/reports"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/store/sqlstore"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/visitnote"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/worker"
	pkgkafka "github.com/Tanmoy095/ClinicLedger/shared/kafka"
	"github.com/Tanmoy095/ClinicLedger/shared/rabbitmq"
)

func main() {
	// =========================================================================
	// 1. LOAD CONFIG
	// =========================================================================
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// 2. DATABASE
	// =========================================================================
	db, err := sqlstore.Open(ctx, cfg.CommonConfig.DB_DRIVER, cfg.CommonConfig.GetDBURL())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	tx := sqlstore.NewTxManager(db)
	catalogStore := sqlstore.NewCatalogStore(db)
	ledgerStore := sqlstore.NewLedgerStore(db)

	// =========================================================================
	// 3. EVENTS
	// =========================================================================
	var publisher pkgkafka.Publisher = events.Nop{}
	switch cfg.EventsBackend {
	case "kafka":
		if cfg.CommonConfig.KAFKA_BROKER == "" || cfg.CommonConfig.KAFKA_TOPIC == "" {
			log.Fatalf("EVENTS_BACKEND=kafka needs KAFKA_BROKER and KAFKA_TOPIC")
		}
		publisher = pkgkafka.NewKafkaProducer(cfg.CommonConfig.KAFKA_BROKER, cfg.CommonConfig.KAFKA_TOPIC)
	case "rabbitmq":
		client, err := rabbitmq.NewClient(cfg.CommonConfig.GetRabbitMQURL())
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		publisher, err = rabbitmq.NewQueuePublisher(client, "billing.events")
		if err != nil {
			log.Fatalf("failed to set up rabbitmq publisher: %v", err)
		}
	}
	bus := events.NewBus(publisher, logger)
	defer bus.Close()
	logger.Info("event backend ready", slog.String("backend", cfg.EventsBackend))

	// =========================================================================
	// 4. SERVICES
	// =========================================================================
	catalog := pricing.NewTimedCatalog(catalogStore, cfg.CatalogTimeout)
	items := visitnote.NewItemService(sqlstore.NewNoteStore(db), catalog, tx, logger)
	finalizer := invoice.NewFinalizer(sqlstore.NewFinalizeStore(db), tx, bus, logger)
	ledgerSvc := ledger.NewService(ledgerStore, tx, logger)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	coordinator := payment.NewCoordinator(
		ledgerSvc,
		gateway,
		stripeWebhook.New(cfg.StripeWebhookSecret),
		bus,
		payment.CoordinatorConfig{Currency: cfg.Currency, GatewayTimeout: cfg.GatewayTimeout},
		logger,
	)

	handler := api.New(api.Deps{
		Items:     items,
		Finalizer: finalizer,
		Ledger:    ledgerSvc,
		Payments:  coordinator,
		Reports:   reports.NewService(ledgerStore, logger),
		Rules:     catalogStore,
	}, cfg.JWTSecret, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// =========================================================================
	// 5. RUN
	// =========================================================================
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server running", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SweepInterval > 0 {
		sweeper := worker.NewSweeper(gateway, coordinator, worker.SweeperConfig{Interval: cfg.SweepInterval}, logger)
		g.Go(func() error { return sweeper.Start(gctx) })
	} else {
		logger.Warn("settlement sweeper disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("billing service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("billing service stopped")
}
