package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"citypay/internal/audit"
	"citypay/internal/auth"
	"citypay/internal/config"
	ledgerapp "citypay/internal/ledger/application"
	ledger "citypay/internal/ledger/domain"
	"citypay/internal/ledger/infrastructure/memory"
	ledgerpostgres "citypay/internal/ledger/infrastructure/postgres"
	"citypay/internal/notify"
	"citypay/internal/observability/metrics"
	paymentsapp "citypay/internal/payments/application"
	paymentshttp "citypay/internal/payments/interfaces/http"
	"citypay/internal/security"
	"citypay/internal/settlement"
)

type auditStore interface {
	audit.Sink
	audit.Lister
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("config error")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	register, err := metrics.New(registry, time.Now())
	if err != nil {
		logger.WithError(err).Fatal("metrics init error")
	}

	var (
		store    ledger.Store
		auditLog auditStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("db open error")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.WithError(err).Fatal("db ping error")
		}
		if err := ledgerpostgres.EnsureSchema(ctx, db); err != nil {
			logger.WithError(err).Fatal("ledger schema error")
		}
		repo := audit.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("audit schema error")
		}
		if err := metrics.RegisterDBStats(registry, db, "citypay"); err != nil {
			logger.WithError(err).Warn("db stats collector not registered")
		}
		store = ledgerpostgres.NewStore(db)
		auditLog = repo
		logger.Info("using postgres ledger")
	} else {
		store = memory.NewStore()
		auditLog = audit.NewMemorySink()
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
	}
	recorder := audit.NewRecorder(auditLog, logger)

	minAmount, maxAmount, err := cfg.Limits.Parse()
	if err != nil {
		logger.WithError(err).Fatal("payment limits error")
	}
	pipeline, err := security.NewPipeline(
		security.WithAmountLimits(minAmount, maxAmount),
		security.WithLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("security pipeline error")
	}

	observers, cleanup := buildObservers(cfg.Notify, recorder, logger)
	defer cleanup()
	fanout := notify.NewFanout(logger, observers...).OnFailure(register.IncNotifyFailure)

	processor, err := paymentsapp.NewProcessor(store, pipeline, settlement.NewRegistry(logger), fanout,
		paymentsapp.WithMetrics(register),
		paymentsapp.WithAudit(recorder),
		paymentsapp.WithLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("payment processor error")
	}
	accounts, err := ledgerapp.NewAccountService(store, recorder, ledgerapp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("account service error")
	}
	handler, err := paymentshttp.NewHandler(processor, accounts, store,
		paymentshttp.WithMetrics(register),
		paymentshttp.WithAuditLog(auditLog),
		paymentshttp.WithLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("payments handler error")
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/metrics", "/healthz"}))
	authMiddleware.Failures = recorder

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(audit.Middleware(authMiddleware.Wrap(mux)), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	_ = recorder.LogSystemEvent(ctx, "SYSTEM_STARTUP", "Payment engine started on "+cfg.HTTPAddr)
	go func() {
		<-ctx.Done()
		register.SetSystemActive(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = recorder.LogSystemEvent(shutdownCtx, "SYSTEM_SHUTDOWN", "Payment engine stopping")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown error")
		}
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("http server error")
	}
}

func buildObservers(cfg config.Notify, recorder *audit.Recorder, logger logrus.FieldLogger) ([]notify.Observer, func()) {
	observers := []notify.Observer{notify.NewLogObserver(logger)}
	cleanup := func() {}

	alerts, err := notify.NewSecurityAlertObserver(recorder, logger)
	if err != nil {
		logger.WithError(err).Fatal("security alert observer error")
	}
	observers = append(observers, alerts)

	if cfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.WebhookURL, notify.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		if err != nil {
			logger.WithError(err).Fatal("webhook channel error")
		}
		tpl, err := notify.NewTemplate(cfg.Template)
		if err != nil {
			logger.WithError(err).Fatal("notify template error")
		}
		var statuses []ledger.Status
		for _, status := range cfg.Statuses {
			statuses = append(statuses, ledger.Status(strings.ToUpper(status)))
		}
		webhook, err := notify.NewWebhookObserver(channel, tpl, statuses...)
		if err != nil {
			logger.WithError(err).Fatal("webhook observer error")
		}
		observers = append(observers, webhook)
	}

	if cfg.NSQAddress != "" {
		producer, err := notify.NewNSQProducer(cfg.NSQAddress)
		if err != nil {
			logger.WithError(err).Warn("nsq unavailable, payment events will not be published")
		} else {
			observer, err := notify.NewNSQObserver(producer, cfg.NSQTopic)
			if err != nil {
				logger.WithError(err).Fatal("nsq observer error")
			}
			observers = append(observers, observer)
			cleanup = producer.Stop
		}
	}
	return observers, cleanup
}

func loggingMiddleware(next http.Handler, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   resp.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
