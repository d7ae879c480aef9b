package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/app"
	"github.com/Freeeeeet/booking_engine/internal/config"
	"github.com/Freeeeeet/booking_engine/internal/controller"
	"github.com/Freeeeeet/booking_engine/internal/gateway"
	httpserver "github.com/Freeeeeet/booking_engine/internal/http-server"
	"github.com/Freeeeeet/booking_engine/internal/lock"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/Freeeeeet/booking_engine/migrations"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Engine stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting booking engine",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("payments_enabled", cfg.PaymentsEnabled()),
		zap.Bool("telegram_enabled", cfg.TelegramToken != ""),
	)

	shutdownTracer, err := app.InitTracer(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("✅ Connected to database")

	migrator, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	slotRepo := repository.NewSlotRepository(pool)
	requestRepo := repository.NewBookingRequestRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	earningRepo := repository.NewEarningRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	recurringRepo := repository.NewRecurringScheduleRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	txManager := base.NewTxManager(pool)

	var gw gateway.Gateway = gateway.Disabled{}
	if cfg.PaymentsEnabled() {
		omiseGateway, err := gateway.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey, logger)
		if err != nil {
			return err
		}
		gw = omiseGateway
	} else {
		logger.Warn("⚠️  Payment gateway keys not set, orders will be refused")
	}

	var locker service.Locker
	if cfg.RedisAddr != "" {
		redisLock, err := lock.NewRedisLock(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisLock.Close()
		locker = redisLock
		logger.Info("✅ Connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}

	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, notify.NewTelegramNotifier(tgBot, userRepo, logger))
	}

	if cfg.RabbitURL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		logger.Info("✅ Publishing events to rabbitmq", zap.String("exchange", cfg.EventsExchange))
	}

	slotService := service.NewSlotService(slotRepo, loc, logger)
	recurringService := service.NewRecurringService(txManager, recurringRepo, loc, cfg.RecurringWeeksAhead, logger)
	earningsService := service.NewEarningsService(earningRepo, logger)
	bookingService := service.NewBookingService(
		txManager,
		requestRepo,
		slotService,
		sessionRepo,
		attendanceRepo,
		earningsService,
		courseRepo,
		notifiers,
		cfg.SlotHoldTTL,
		logger,
	)
	paymentService := service.NewPaymentService(
		txManager,
		paymentRepo,
		bookingService,
		gw,
		locker,
		notifiers,
		service.PaymentConfig{
			Currency:      cfg.PaymentCurrency,
			PublicBaseURL: cfg.PublicBaseURL,
			PollInterval:  cfg.PaymentPollInterval,
			PollTimeout:   cfg.PaymentPollTimeout,
		},
		logger,
	)
	defer paymentService.Close()
	sessionService := service.NewSessionService(
		txManager,
		sessionRepo,
		attendanceRepo,
		requestRepo,
		slotService,
		service.NewMeetingLinks(cfg.MeetingBaseURL),
		notifiers,
		logger,
	)
	userService := service.NewUserService(userRepo, logger)

	scheduler := app.NewScheduler(slotService, bookingService, paymentService, cfg.SweepInterval, cfg.PaymentPollTimeout, logger).
		WithSeries(recurringService, cfg.RecurringInterval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if tgBot != nil {
		botController := controller.NewBotController(tgBot, userService, bookingService, sessionService, loc, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	router := httpserver.NewRouter(logger, httpserver.Services{
		Slots:     slotService,
		Recurring: recurringService,
		Bookings:  bookingService,
		Payments:  paymentService,
		Sessions:  sessionService,
		Earnings:  earningsService,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server", zap.Duration("timeout", cfg.HTTPShutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// даём фоновым опросам оплат завершиться до закрытия пула
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		paymentService.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.HTTPShutdownTimeout):
		logger.Warn("Background jobs did not stop in time")
	}

	logger.Info("Booking engine stopped")
	return nil
}
