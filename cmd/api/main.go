package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/grievance-service/internal/api/http"
	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/persistence"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/internal/sla"
	"github.com/spec-kit/grievance-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	ruleRepo := repository.NewEscalationRuleRepository(pool)
	recordRepo := repository.NewEscalationRecordRepository(pool)
	holidayRepo := repository.NewHolidayRepository(pool)

	calendar, err := buildCalendar(ctx, cfg.SLA, holidayRepo)
	if err != nil {
		logger.Fatal("failed to build working calendar", zap.Error(err))
	}
	classifier := sla.NewClassifier(calendar, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	dispatcher.Subscribe(events.EventTicketEscalated, func(_ context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.TicketEscalationPayload); ok {
			metrics.RecordEscalation("escalate", payload.ToLevel)
		}
		return nil
	})
	dispatcher.Subscribe(events.EventTicketDeescalated, func(_ context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.TicketEscalationPayload); ok {
			metrics.RecordEscalation("deescalate", payload.ToLevel)
		}
		return nil
	})

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Classifier: classifier,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo: ticketRepo,
		RuleRepo:   ruleRepo,
		RecordRepo: recordRepo,
		Classifier: classifier,
		Locker:     redis,
		Notifier:   notifications,
		Dispatcher: dispatcher,
		Logger:     logger,
		LockTTL:    cfg.SLA.TicketLockTTL,
	})

	escalationWorker, err := worker.NewEscalationWorker(escalationService, cfg.SLA.Timezone, cfg.SLA.TickInterval, cfg.SLA.TickTimeout, logger)
	if err != nil {
		logger.Fatal("failed to build escalation worker", zap.Error(err))
	}
	if err := escalationWorker.Start(); err != nil {
		logger.Fatal("failed to start escalation worker", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Grievances:     handlers.NewGrievancesHandler(ticketService),
		Escalations:    handlers.NewEscalationsHandler(escalationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := escalationWorker.Stop(); err != nil {
		logger.Warn("escalation worker shutdown", zap.Error(err))
	}
	_ = app.Shutdown()
}

// buildCalendar merges env-configured holidays with the holidays table.
func buildCalendar(ctx context.Context, cfg config.SLAConfig, holidays repository.HolidayRepository) (*sla.Calendar, error) {
	dates := append([]time.Time(nil), cfg.Holidays...)
	stored, err := holidays.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range stored {
		dates = append(dates, h.Date)
	}
	return sla.NewCalendar(sla.Settings{
		Location: cfg.Timezone,
		DayStart: cfg.WorkdayStart,
		DayEnd:   cfg.WorkdayEnd,
		OffDays:  cfg.OffDays,
		Holidays: dates,
	})
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
