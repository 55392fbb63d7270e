package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voyago/travel-sagas/internal/adapter"
	auditsqlite "github.com/voyago/travel-sagas/internal/audit/sqlite"
	"github.com/voyago/travel-sagas/internal/booking"
	"github.com/voyago/travel-sagas/internal/httpx"
	"github.com/voyago/travel-sagas/internal/orchestration"
	"github.com/voyago/travel-sagas/internal/payment"
	"github.com/voyago/travel-sagas/internal/pkg/cache"
	"github.com/voyago/travel-sagas/internal/pkg/telemetry"
	"github.com/voyago/travel-sagas/internal/provider"
	storesqlite "github.com/voyago/travel-sagas/internal/store/sqlite"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "reservation-orchestrator")
	if err != nil {
		slog.Error("tracer setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	dbPath := getEnv("DB_PATH", "./data/reservations.db")
	auditPath := getEnv("AUDIT_DB_PATH", "./data/audit.db")
	redisAddr := os.Getenv("REDIS_ADDR")
	legTimeout := getDurationEnv("LEG_TIMEOUT", orchestration.DefaultLegTimeout)

	st, err := storesqlite.Open(dbPath)
	if err != nil {
		slog.Error("store open failed", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	auditor, err := auditsqlite.Open(auditPath)
	if err != nil {
		slog.Error("audit log open failed", "path", auditPath, "error", err)
		os.Exit(1)
	}
	defer auditor.Close()

	var statusCache cache.Cache
	if redisAddr != "" {
		statusCache = cache.NewRedisCache(redisAddr, "reservation-orchestrator")
	}

	registry := adapter.NewRegistry()
	registry.Register(booking.KindFlight, provider.NewFlight())
	registry.Register(booking.KindHotel, provider.NewHotel())
	registry.Register(booking.KindActivity, provider.NewActivity())

	orch := orchestration.New(registry, st, payment.NewInMemory(), auditor, orchestration.Config{
		LegTimeout: legTimeout,
	})

	handler := httpx.NewHandler(orch, statusCache)
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: httpx.NewRouter(handler),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("reservation orchestrator running", "addr", httpAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
