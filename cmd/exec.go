package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-engine/config"
	"booking-engine/internal/handlers"
	"booking-engine/internal/queue"
	"booking-engine/internal/services"
	"booking-engine/internal/store"
	"booking-engine/models"
	"booking-engine/monitoring"
	"booking-engine/security"
	"booking-engine/utils"

	_ "booking-engine/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	tables, err := config.LoadPricing(cfg.PricingRulesPath)
	if err != nil {
		return err
	}

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit fan-out is optional
	var publisher *queue.Publisher
	var auditPublisher services.AuditPublisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL, cfg.AuditQueue)
		defer publisher.Close()
		auditPublisher = publisher
	} else {
		slog.Warn("AMQP_URL not set, lifecycle events will not be published")
	}

	monitor := monitoring.NewMonitor(redisClient)
	logger := slog.Default()

	// Initialize services
	bookingStore := store.New(app)
	seatCache := services.NewSeatCache(redisClient)
	deps := services.Deps{
		Store:     bookingStore,
		Locker:    services.NewRedisLocker(redisClient, cfg.BookingLockTTL),
		Publisher: auditPublisher,
		Monitor:   monitor,
		Logger:    logger,
	}
	ledger := services.NewInventoryLedger(bookingStore, seatCache, monitor, logger)
	attendance := services.NewAttendanceTracker(deps)
	lifecycle := services.NewLifecycleController(deps, ledger, attendance)
	checkin := services.NewCheckInService(attendance, lifecycle, logger)
	pricing := services.NewPricingEngine(tables, logger)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(lifecycle, seatCache)
	attendanceHandler := handlers.NewAttendanceHandler(lifecycle, attendance, checkin)
	pricingHandler := handlers.NewPricingHandler(pricing)
	limiter := security.NewRateLimiter(redisClient, cfg.AdminRateLimit)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})
	app.RootCmd.AddCommand(newQuoteCommand(pricing))

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := utils.RedisHealthCheck(ctx, redisClient); err != nil {
			return err
		}
		if publisher != nil {
			if err := publisher.Connect(); err != nil {
				return err
			}
		}

		// Start background tasks
		go monitor.Run(ctx, cfg.MetricsInterval)
		if cfg.EnableMetrics {
			go startMetricsServer(ctx, cfg.MetricsPort)
		}

		admin := e.Router.Group("/api/v1/admin")
		admin.Bind(apis.RequireAuth(handlers.AdminsCollection))
		admin.BindFunc(limiter.AntiBotMiddleware())
		admin.BindFunc(limiter.AdminRateLimit())

		// Booking lifecycle
		admin.GET("/bookings", bookingHandler.ListBookings)
		admin.DELETE("/bookings/{id}", bookingHandler.HardDelete)
		admin.POST("/bookings/{id}/confirm", bookingHandler.Confirm)
		admin.POST("/bookings/{id}/cancel", bookingHandler.Cancel)
		admin.POST("/bookings/{id}/cancellation/request", bookingHandler.RequestCancellation)
		admin.POST("/bookings/{id}/cancellation/approve", bookingHandler.ApproveCancellation)
		admin.POST("/bookings/{id}/cancellation/reject", bookingHandler.RejectCancellation)
		admin.POST("/bookings/{id}/price", bookingHandler.AdjustPrice)
		admin.POST("/bookings/{id}/participation", bookingHandler.MarkParticipated)
		admin.DELETE("/bookings/{id}/participation", bookingHandler.UndoParticipation)
		admin.GET("/bookings/{id}/seats", bookingHandler.GetSeats)

		// Attendance
		admin.GET("/bookings/{id}/attendance", attendanceHandler.GetAttendance)
		admin.PUT("/bookings/{id}/attendance", attendanceHandler.SetMany)
		admin.PUT("/bookings/{id}/attendance/{unit}", attendanceHandler.SetUnit)
		admin.POST("/bookings/{id}/attendance/reset", attendanceHandler.ResetAll)

		// Pricing
		admin.GET("/pricing/quote", pricingHandler.Quote)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	setupBookingHooks(app, attendance, seatCache)

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupBookingHooks covers bookings written through the generic PocketBase
// record API (e.g. the dashboard) rather than the admin endpoints.
func setupBookingHooks(app *pocketbase.PocketBase, attendance *services.AttendanceTracker, seats *services.SeatCache) {
	app.OnRecordAfterCreateSuccess(store.BookingsCollection).BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetString("status") == string(models.StatusConfirmed) {
			initializeAttendance(e.Context, attendance, e.Record)
		}
		return e.Next()
	})

	app.OnRecordAfterUpdateSuccess(store.BookingsCollection).BindFunc(func(e *core.RecordEvent) error {
		old := e.Record.Original().GetString("status")
		if old != string(models.StatusConfirmed) && e.Record.GetString("status") == string(models.StatusConfirmed) {
			initializeAttendance(e.Context, attendance, e.Record)
		}
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess(store.HoldsCollection).BindFunc(func(e *core.RecordEvent) error {
		kind := models.Kind(e.Record.GetString("kind"))
		scope := e.Record.GetString("scope")
		unit := e.Record.GetString("unit")
		if err := seats.ClearUnits(e.Context, kind, scope, e.Record.GetString("booking"), []string{unit}); err != nil {
			slog.Error("Failed to clear seat mirror",
				"kind", kind,
				"scope", scope,
				"unit", unit,
				"error", err,
				"hook", "OnRecordAfterDeleteSuccess",
			)
		}
		return e.Next()
	})
}

func initializeAttendance(ctx context.Context, attendance *services.AttendanceTracker, rec *core.Record) {
	kind := models.Kind(rec.GetString("kind"))
	if _, err := attendance.EnsureInitialized(ctx, rec.Id, kind, nil); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Failed to initialize attendance", "bookingID", rec.Id, "kind", kind, "error", err)
	}
}

func startMetricsServer(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server error", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
