package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meatengine/internal/admin"
	"meatengine/internal/alert"
	"meatengine/internal/audit"
	"meatengine/internal/auth"
	"meatengine/internal/compliance"
	"meatengine/internal/config"
	"meatengine/internal/database"
	"meatengine/internal/inventory"
	"meatengine/internal/logging"
	"meatengine/internal/metrics"
	"meatengine/internal/models"
	"meatengine/internal/reference"
	"meatengine/internal/report"
	"meatengine/internal/usage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the window opener and the reference watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

// app bundles the services both the server and the CLI commands use.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	notifier  alert.Notifier
	refs      *reference.Holder
	watcher   *reference.Watcher
	gate      *compliance.Gate
	usage     *usage.Service
	inventory *inventory.Service
	reports   *report.Service
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	a.log = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(a.log)

	database.Init(cfg)
	db := database.DB

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	notifiers := alert.Multi{alert.LogNotifier{Logger: logging.WithComponent(a.log, "alert")}}
	if cfg.NATSURL != "" {
		nn, err := alert.NewNATSNotifier(cfg.NATSURL, alert.DefaultSubject)
		if err != nil {
			// alerts still reach the log
			a.log.Warn("NATS unavailable, alerts go to the log only", "url", cfg.NATSURL, "error", err)
		} else {
			notifiers = append(notifiers, nn)
			a.closers = append(a.closers, nn.Close)
		}
	}
	a.notifier = notifiers

	loader := &reference.Loader{Path: cfg.ReferenceTablesPath, Targets: reference.GormTargets{DB: db}}
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.refs = reference.NewHolder(snap)
	a.watcher = reference.NewWatcher(loader, a.refs, logging.WithComponent(a.log, "reference"))
	a.watcher.OnReload = func(ctx context.Context, err error) {
		a.metrics.SnapshotReload(err == nil)
		if err == nil {
			return
		}
		if nerr := a.notifier.Notify(ctx, alert.Alert{
			Kind:    alert.KindReferenceError,
			Message: err.Error(),
			At:      time.Now(),
		}); nerr != nil {
			a.metrics.AlertFailed()
		}
	}

	schedule, err := compliance.NewSchedule(cfg.WindowOpen, cfg.ComplianceCutoff, cfg.Location)
	if err != nil {
		return nil, err
	}
	a.gate = compliance.NewGate(compliance.NewGormCycleRepository(db), schedule,
		compliance.WithMetrics(a.metrics),
		compliance.WithNotifier(a.notifier),
		compliance.WithLogger(logging.WithComponent(a.log, "compliance")))

	a.usage = usage.NewService(db, logging.WithComponent(a.log, "usage"))
	a.inventory = inventory.NewService(db, a.gate, a.refs, logging.WithComponent(a.log, "inventory"))
	a.reports = report.NewService(db, a.usage, a.inventory, a.refs, report.Config{
		Tolerance: cfg.ToleranceBand,
		Notifier:  a.notifier,
		Metrics:   a.metrics,
		Logger:    logging.WithComponent(a.log, "report"),
	})
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func serve() error {
	cfg := config.Load()
	cfg.RequireServerSecrets()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opener := compliance.NewOpener(a.gate, logging.WithComponent(a.log, "opener"))
	if err := opener.Start(ctx); err != nil {
		return err
	}
	defer opener.Stop()

	go func() {
		if err := a.watcher.Run(ctx); err != nil {
			a.log.Error("reference watcher stopped", "error", err)
		}
	}()

	srv := a.routes()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			a.log.Error("shutdown failed", "error", err)
		}
	}()

	a.log.Info("server listening", "port", cfg.HTTPPort, "version", Version)
	return srv.Listen(":" + a.cfg.HTTPPort)
}

func (a *app) routes() *fiber.App {
	db := database.DB
	httpLog := logging.WithComponent(a.log, "http")

	srv := fiber.New(fiber.Config{
		AppName: appName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			httpLog.Error("unexpected error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	srv.Use(recover.New())
	srv.Use(logger.New())

	corsOrigins := strings.Split(a.cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	srv.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	srv.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	srv.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := srv.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, a.cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(a.cfg.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Get("/compliance/status", compliance.StatusHandler(a.gate, nil))

	// The weekly close is how a locked store unlocks itself, so it stays
	// outside the gate.
	protected.Post("/inventory/weekly-close", inventory.WeeklyCloseHandler(a.inventory))

	// Operational routes, locked while a store's count is overdue
	gated := protected.Group("", compliance.Middleware(a.gate, nil))

	gated.Post("/usage-records", usage.CreateHandler(a.usage))
	gated.Post("/usage-records/:id/correct", usage.CorrectHandler(a.usage))
	gated.Get("/usage-records", usage.ListHandler(a.usage))
	gated.Get("/inventory/consumption", inventory.ConsumptionHandler(a.inventory))
	gated.Post("/waste-entries", inventory.CreateWasteHandler(a.inventory))
	gated.Get("/waste-entries", inventory.ListWasteHandler(a.inventory))
	gated.Delete("/waste-entries/:id", inventory.DeleteWasteHandler(a.inventory))

	gated.Get("/reports/stores/:id/variance", report.StoreVarianceHandler(a.reports, nil))
	gated.Get("/reports/stores/:id/shrinkage", report.ShrinkageHandler(a.reports, nil))
	gated.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Network-wide routes
	elevated := protected.Group("", auth.RequireRole(models.RoleSuperAdmin, models.RoleDirector))
	elevated.Get("/reports/network", report.NetworkHandler(a.reports, db, nil))
	elevated.Post("/reference/reload", reference.ReloadHandler(a.watcher))

	// Network setup, super admin only
	adminRoutes := protected.Group("/admin", auth.RequireRole(models.RoleSuperAdmin))
	targets := admin.NewTargetHandlers(db, a.refs, a.watcher)

	adminRoutes.Post("/companies", admin.CreateCompanyHandler(db))
	adminRoutes.Post("/stores", admin.CreateStoreHandler(db))
	adminRoutes.Get("/stores", admin.ListStoresHandler(db))
	adminRoutes.Post("/stores/:id/managers", admin.CreateStoreManagerHandler(db))
	adminRoutes.Get("/stores/:id/targets", targets.List())
	adminRoutes.Put("/stores/:id/targets", targets.Upsert())
	adminRoutes.Delete("/stores/:id/targets/:protein", targets.Delete())
	adminRoutes.Put("/stores/:id/proxy", targets.SetProxy())

	return srv
}
