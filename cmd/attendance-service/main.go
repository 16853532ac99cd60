package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/punchflow/punchflow-backend/internal/attendance/consumers"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/handler"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/config"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/deviceauth"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("attendance-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("attendance-service", cfg.Server.Environment)
	log.Info().Msg("starting Attendance Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewAttendanceEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	recordRepo := repository.NewRecordRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	// Initialize collaborators
	resolver := schedule.NewResolver(scheduleRepo, log)
	tokens := deviceauth.NewManager(&cfg.DeviceAuth)

	// Initialize services
	punchService := service.NewPunchService(recordRepo, scheduleRepo, leaveRepo, policyRepo, resolver, publisher, log)
	enrichmentService := service.NewEnrichmentService(recordRepo, scheduleRepo, leaveRepo, policyRepo, resolver, publisher, log)
	validationService := service.NewValidationService(recordRepo, publisher, log)
	recordService := service.NewRecordService(recordRepo, scheduleRepo, policyRepo)
	deviceService := service.NewDeviceService(deviceRepo, tokens, publisher, log)
	sweepService := service.NewSweepService(recordRepo, policyRepo, resolver, publisher, log)

	// Start the enrichment worker pool
	pool := service.NewEnrichmentPool(enrichmentService, &cfg.Sweep, log)
	pool.Start()
	defer pool.Stop()
	punchService.SetEnqueue(pool.Submit)
	validationService.SetEnqueue(pool.Submit)

	// Start the batch sweep scheduler
	scheduler := service.NewSweepScheduler(db, sweepService, &cfg.Sweep, log)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	punchHandler := handler.NewPunchHandler(punchService, tokens, log)
	recordHandler := handler.NewRecordHandler(recordService, log)
	validationHandler := handler.NewValidationHandler(validationService, log)
	deviceHandler := handler.NewDeviceHandler(deviceService, log)

	// Start broker ingest consumer
	punchConsumer, err := consumers.NewPunchEventConsumer(rmq, punchService, resolver, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create punch event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := punchConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start punch event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Tenant-Slug", "X-Tenant-Timezone", "X-User-ID", "X-User-Name", "X-User-Email", "X-User-Role", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no tenant required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "attendance-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Terminal ingest: the device token carries the tenant, no gateway
	// headers are expected.
	r.Post("/api/v1/attendance/punches/terminal", punchHandler.IngestTerminal)

	// Gateway routes (tenant headers required)
	r.Group(func(r chi.Router) {
		r.Use(httputil.TenantMiddleware)
		r.Use(httputil.ActorMiddleware)

		r.Route("/api/v1/attendance", func(r chi.Router) {
			r.Post("/punches/manual", punchHandler.IngestManual)

			r.Route("/records", func(r chi.Router) {
				r.Get("/{id}", recordHandler.GetByID)
				r.Delete("/{id}", validationHandler.Delete)
				r.Patch("/{id}/type", validationHandler.CorrectType)
				r.Post("/{id}/validate", validationHandler.Validate)
				r.Post("/{id}/correction/approve", validationHandler.ApproveCorrection)
				r.Post("/{id}/correction/reject", validationHandler.RejectCorrection)
			})

			r.Get("/employees/{employeeRef}/records", recordHandler.ListForEmployee)
			r.Get("/validation/pending", validationHandler.ListPending)

			r.Route("/devices", func(r chi.Router) {
				r.Post("/", deviceHandler.Enroll)
				r.Post("/token", deviceHandler.IssueToken)
				r.Post("/{id}/revoke", deviceHandler.Revoke)
			})
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
