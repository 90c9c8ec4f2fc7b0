package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"gateway-monitor/internal/audit"
	"gateway-monitor/internal/auth"
	"gateway-monitor/internal/monitoring/application"
	monitoringpg "gateway-monitor/internal/monitoring/infrastructure/postgres"
	monitoringhttp "gateway-monitor/internal/monitoring/interfaces/http"
	"gateway-monitor/internal/monitoring/notify"
	"gateway-monitor/internal/observability/metrics"
	"gateway-monitor/internal/srcful"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	monitorCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("monitor config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	subscriptionRepo := monitoringpg.NewSubscriptionRepository(db,
		monitoringpg.WithDefaultThreshold(monitorCfg.DefaultThresholdMinutes))
	stateRepo := monitoringpg.NewStateRepository(db)

	fetcher, err := srcful.NewClient(cfg.APIURL, cfg.AuthToken)
	if err != nil {
		logger.Fatalf("telemetry client error: %v", err)
	}

	service, err := application.NewService(subscriptionRepo, stateRepo, fetcher)
	if err != nil {
		logger.Fatalf("monitoring service error: %v", err)
	}
	detector, err := application.NewDetector(stateRepo)
	if err != nil {
		logger.Fatalf("detector error: %v", err)
	}

	renderer, err := notify.NewTemplate("", application.FormatPower)
	if err != nil {
		logger.Fatalf("notify template error: %v", err)
	}
	transport, err := buildTransport(cfg, monitorCfg, logger)
	if err != nil {
		logger.Fatalf("notify transport error: %v", err)
	}
	dispatcher, err := application.NewDispatcher(transport, renderer, detector, logger)
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}
	scheduler, err := application.NewScheduler(subscriptionRepo, fetcher, detector, dispatcher, logger,
		application.WithInterval(monitorCfg.PollInterval()),
		application.WithFetchTimeout(monitorCfg.FetchTimeout()),
		application.WithCycleTimeout(monitorCfg.CycleTimeout()),
	)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	go scheduler.Start(context.Background())

	handler, err := monitoringhttp.NewHandler(service, auditRepo)
	if err != nil {
		logger.Fatalf("http handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/subscriptions", handler)
	mux.Handle("/api/v1/users/", handler)
	mux.Handle("/api/v1/status", handler)
	mux.Handle("/api/v1/stats", handler)
	mux.Handle("/api/v1/exports/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// buildTransport picks the delivery channels: Telegram and Messenger when
// their tokens are set, log-only delivery when neither is.
func buildTransport(cfg config, monitorCfg application.Config, logger *log.Logger) (application.Transport, error) {
	var channels []application.Transport
	if cfg.TelegramToken != "" {
		opts := []notify.TelegramOption{}
		if monitorCfg.TelegramParseMode != "" {
			opts = append(opts, notify.WithParseMode(monitorCfg.TelegramParseMode))
		}
		telegram, err := notify.NewTelegramChannel(cfg.TelegramToken, opts...)
		if err != nil {
			return nil, err
		}
		channels = append(channels, telegram)
	}
	if cfg.FBPageAccessToken != "" {
		messenger, err := notify.NewMessengerChannel(cfg.FBPageAccessToken)
		if err != nil {
			return nil, err
		}
		channels = append(channels, messenger)
	}
	switch len(channels) {
	case 0:
		logger.Printf("no notification transport configured, messages are logged only")
		return notify.NewLogChannel(logger), nil
	case 1:
		return channels[0], nil
	default:
		return notify.NewMultiTransport(channels...), nil
	}
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	APIURL            string
	AuthToken         string
	TelegramToken     string
	FBPageAccessToken string
	JWTSecret         string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		APIURL:            getenvDefault("API_URL", "https://api.srcful.dev/"),
		AuthToken:         getenvDefault("AUTH_TOKEN", ""),
		TelegramToken:     getenvDefault("TELEGRAM_TOKEN", ""),
		FBPageAccessToken: getenvDefault("FB_PAGE_ACCESS_TOKEN", ""),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
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
