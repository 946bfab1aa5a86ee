package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Simplici0/dltaller/internal/config"
	"github.com/Simplici0/dltaller/internal/db"
	"github.com/Simplici0/dltaller/internal/logging"
	"github.com/Simplici0/dltaller/internal/migrations"
	"github.com/Simplici0/dltaller/internal/seed"
	"github.com/Simplici0/dltaller/internal/service"
	"github.com/Simplici0/dltaller/internal/store"
)

type server struct {
	svc *service.Service
	// weekStart is the weekday payroll weeks must start on.
	weekStart time.Weekday
	now       func() time.Time
	newID     func() string
}

func newServer(svc *service.Service, weekStart time.Weekday) *server {
	return &server{svc: svc, weekStart: weekStart, now: time.Now, newID: uuid.NewString}
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(ctx, database); err != nil {
			log.Fatal().Err(err).Msg("failed to run database migrations")
		}
		stats, err := seed.Run(ctx, database, seed.Config{GlobalIndirectPct: cfg.GlobalIndirectPct})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed database")
		}
		log.Info().Int("inserts", stats.Inserts).Msg("demo catalog seeded")
	}

	srv := newServer(service.New(store.New(database), cfg.GlobalIndirectPct), cfg.PayrollWeekStart)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", httpServer.Addr).Str("env", cfg.Env).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/costing/recipe", s.handleRecipeCostCompute)
		r.Post("/costing/batch", s.handleBatchCostCompute)
		r.Post("/payroll/weekly", s.handleWeeklyPayrollCompute)

		r.Get("/recipes/{id}/cost", s.handleRecipeCost)
		r.Get("/batches/{id}/cost", s.handleBatchCost)
		r.Get("/payroll/weeks/{id}", s.handlePayrollWeek)
		r.Put("/payroll/weeks/{id}/factors", s.handlePayrollFactorsUpdate)
		r.Put("/payroll/weeks/{id}/days", s.handlePayrollDaysSave)
		r.Post("/payroll/weeks/{id}/payments", s.handlePayrollPaymentCreate)
		r.Delete("/payroll/weeks/{id}/payments/{paymentID}", s.handlePayrollPaymentDelete)

		r.Get("/purchases/{id}/totals", s.handlePurchaseTotals)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
