package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "garderie-cloud/internal/api/http"
	"garderie-cloud/internal/audit"
	"garderie-cloud/internal/auth"
	"garderie-cloud/internal/observability/metrics"
	"garderie-cloud/internal/releve/application"
	releverepo "garderie-cloud/internal/releve/infrastructure/postgres"
	releveinterfaces "garderie-cloud/internal/releve/interfaces"
	"garderie-cloud/internal/releve/xmlgen"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadServerConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	releveCfg, err := application.LoadConfig(cfg.ReleveConfigPath)
	if err != nil {
		logger.Fatalf("releve config error: %v", err)
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

	transmissionRepo := releverepo.NewTransmissionRepository(db)
	eligibilityRepo := releverepo.NewEligibilityRepository(db)
	sequenceRepo := releverepo.NewSequenceRepository(db)
	auditRecorder := audit.NewRecorder(db)

	allocator, err := application.NewSequenceAllocator(sequenceRepo, releveCfg.OutputRoot)
	if err != nil {
		logger.Fatalf("sequence allocator error: %v", err)
	}

	batchService, err := application.NewBatchService(
		releveCfg,
		transmissionRepo,
		eligibilityRepo,
		allocator,
		xmlgen.NewGenerator(),
		xmlgen.NewValidator(),
		nil,
		auditRecorder,
		logger,
	)
	if err != nil {
		logger.Fatalf("batch service error: %v", err)
	}

	releveHandler, err := releveinterfaces.NewReleveHandler(batchService, transmissionRepo)
	if err != nil {
		logger.Fatalf("releve handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/rl24/preview", releveHandler)
	mux.Handle("/api/v1/rl24/process", releveHandler)
	mux.Handle("/api/v1/rl24/transmissions", apihttp.NewTransmissionsHandler(db))
	mux.Handle("/api/v1/rl24/transmissions/", releveHandler)
	mux.Handle("/api/v1/exports/transmissions.csv", apihttp.NewExportTransmissionsCSVHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type serverConfig struct {
	DatabaseURL      string
	HTTPAddr         string
	ReleveConfigPath string
	JWTSecret        string
}

func loadServerConfig() serverConfig {
	cfg := serverConfig{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		ReleveConfigPath: getenvDefault("RL24_CONFIG", ""),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
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
