package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application/integration"
	appInventory "github.com/Zhima-Mochi/kitchen-ops/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/kitchen-ops/internal/application/order"
	appRefund "github.com/Zhima-Mochi/kitchen-ops/internal/application/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/config"
	domainInventory "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
	domainMonitoring "github.com/Zhima-Mochi/kitchen-ops/internal/domain/monitoring"
	domainOrder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/kitchen-ops/internal/domain/payment"
	domainRefund "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	domainSales "github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"
	domainTransaction "github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/connectivity"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/hardware"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/orderapi"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/rabbitmq"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/writequeue"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/ws"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/kitchen-ops/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/kitchen-ops/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// adapters are the persistence-side ports, backed by Postgres or by memory.
type adapters struct {
	refunds   domainRefund.Repository
	inventory domainInventory.Repository
	ledger    domainTransaction.Appender
	archive   domainSales.Archive
	orders    domainOrder.API
	close     func()
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
		Level:   cfg.Service.LogLevel,
		File:    cfg.Service.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, baseLogger); err != nil {
		systemLogger.Error("service_failed", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
	systemLogger.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) error {
	counters, histograms := prometrics.Standard(prometrics.New(prometheus.DefaultRegisterer, "", ""))
	logger := zaplogger.New(baseLogger)
	tel := infraobs.New(oteltrace.New(cfg.Service.Name), logger, counters, histograms)

	ids := id.NewUUIDGenerator()

	store, err := openAdapters(ctx, cfg, ids)
	if err != nil {
		return err
	}
	defer store.close()

	bus := outbox.NewBus(tel, outbox.Options{EventContext: workerpresentation.WithEventContext})

	// Write queue: transaction logs and monitoring alerts survive restarts and outages.
	monitor := connectivity.NewMonitor(true, logger)
	var alertSender writequeue.Sender = writequeue.DeliverAlerts(&memory.Alerts{})
	if cfg.Monitoring.AlertURL != "" {
		alertSender = writequeue.NewHTTPSender(cfg.Monitoring.AlertURL, cfg.WriteQueue.SendTimeout, monitor.MarkOffline)
	}
	queue := writequeue.New(
		writequeue.NewFileStore(cfg.WriteQueue.Path),
		writequeue.Router{
			domainTransaction.Target: writequeue.DeliverTransactionLogs(store.ledger),
			domainMonitoring.Target:  alertSender,
		},
		monitor,
		ids,
		tel,
		writequeue.Options{
			MaxRetries:    cfg.WriteQueue.MaxRetries,
			DrainInterval: cfg.WriteQueue.DrainInterval,
			SendTimeout:   cfg.WriteQueue.SendTimeout,
		},
	)
	if err := queue.Load(ctx); err != nil {
		return err
	}
	queuedLogs := writequeue.TransactionLog{Queue: queue}
	queuedAlerts := writequeue.Alerts{Queue: queue}

	devices := integration.Devices{
		Drawer:  hardware.NewDrawer(tel),
		Printer: hardware.NewPrinter(tel),
		Scanner: hardware.NewScanner(tel),
	}

	orders := appOrder.NewStore(store.orders, store.archive, bus, ids, tel)
	refunds := appRefund.NewEngine(store.refunds, queuedLogs, queuedAlerts, devices.Drawer, ids, cfg.RefundPolicy.Policy(), tel)
	deductions := appInventory.NewCoordinator(store.inventory, bus, tel)
	facade := integration.NewFacade(queuedLogs, bus, store.archive, refunds, deductions, devices, ids,
		integration.Options{PrintReceipts: cfg.Integration.PrintReceipts}, tel)

	appInventory.NewWorker(bus, facade, tel).Start()

	hub := ws.NewHub(tel)
	hub.Attach(bus)

	if cfg.RabbitMQ.URL != "" {
		broker, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, tel)
		if err != nil {
			return err
		}
		defer func() { _ = broker.Close() }()
		broker.Forward(bus,
			domainOrder.OrderCompletedEvent{}.EventName(),
			domainPayment.ProcessedEvent{}.EventName(),
			domainPayment.IntegrationErrorEvent{}.EventName(),
			domainInventory.StockDeductedEvent{}.EventName(),
		)
	}

	bus.Start(ctx)
	defer bus.Stop(context.Background())

	facade.ConnectDevices(ctx)
	if err := orders.Load(ctx); err != nil {
		logger.Warn("order_load_failed", observability.F("error", err.Error()))
	}

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Orders:      orders,
		Refunds:     refunds,
		Integration: facade,
		Queue:       queue,
		Live:        hub,
	}, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		baseLogger.Info("http_server_start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		baseLogger.Info("http_server_stopped")
		return nil
	})
	g.Go(func() error { return queue.Run(gctx) })
	if target := cfg.ProbeTarget(); target != "" {
		probe := connectivity.HTTPProbe(target, cfg.WriteQueue.SendTimeout)
		g.Go(func() error { return monitor.Run(gctx, probe, cfg.Connectivity.ProbeInterval) })
	}

	err = g.Wait()
	orders.Flush()
	queue.Flush()
	return err
}

func openAdapters(ctx context.Context, cfg *config.Config, ids *id.UUIDGenerator) (*adapters, error) {
	a := &adapters{close: func() {}}

	if cfg.OrderAPI.BaseURL != "" {
		client, err := orderapi.New(cfg.OrderAPI.BaseURL, cfg.OrderAPI.Timeout)
		if err != nil {
			return nil, err
		}
		a.orders = client
	} else {
		a.orders = memory.NewOrderAPI(ids)
	}

	if cfg.Postgres.URL == "" {
		a.refunds = memory.NewRefundRepository()
		a.inventory = memory.NewInventoryRepository()
		a.ledger = memory.NewTransactionLog()
		a.archive = memory.NewSalesArchive()
		return a, nil
	}

	pool, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	a.refunds = postgres.NewRefundRepository(pool)
	a.inventory = postgres.NewInventoryRepository(pool)
	a.ledger = postgres.NewTransactionLog(pool)
	a.archive = postgres.NewSalesArchive(pool)
	a.close = pool.Close
	return a, nil
}
