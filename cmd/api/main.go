package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/digest"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/google"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/notify"
	"salonbook/internal/repository"
	"salonbook/internal/service"
	"salonbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "api-main")

	services, err := loadServices(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Google.Location()

	calendarService, err := initCalendar(ctx, cfg, logger)
	if err != nil {
		return err
	}

	notifier, err := initNotifiers(cfg, base)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(base, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	notificationWorker := worker.NewNotificationWorker(
		db,
		notifier,
		redisClient,
		worker.RetryPolicyFromConfig(cfg.Worker),
		time.Duration(cfg.Worker.PollInterval)*time.Second,
		logging.Component(base, "notification-worker"),
	)
	go notificationWorker.Start(ctx)

	eventBus := initEventBus(base)

	bookingService := service.NewBookingService(
		calendarService,
		bookingNotifier(notifier),
		notificationWorker,
		initSlotLocker(redisClient, base),
		eventBus,
		service.BookingOptions{
			Location:     loc,
			SlotDuration: cfg.Booking.SlotDuration(),
			PhoneDefault: cfg.Booking.PhoneDefault,
			OwnerEmail:   cfg.Notify.OwnerEmail,
			LockTTL:      time.Duration(cfg.Booking.LockTTL) * time.Second,
			LockWait:     time.Duration(cfg.Booking.LockWait) * time.Second,
			Services:     services,
		},
		logging.Component(base, "booking"),
	)
	appointmentService := service.NewAppointmentService(calendarService, eventBus, loc, logging.Component(base, "appointments"))

	if err := startDigest(ctx, cfg, appointmentService, notifier, loc, base); err != nil {
		return err
	}

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.HTTP, api.Deps{
		Booking:      bookingService,
		Appointments: appointmentService,
		Catalogue:    bookingService,
		Location:     loc,
		Checks:       readinessChecks(calendarService, db, redisClient),
	}, base)

	return serve(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

// loadServices reads the optional service catalogue. A missing file means any
// service name is accepted.
func loadServices(logger *zerolog.Logger) ([]models.ServiceOffering, error) {
	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	data, err := os.ReadFile(servicesPath)
	if os.IsNotExist(err) {
		logger.Info().Str("services_path", servicesPath).Msg("no service catalogue, accepting any service")
		return nil, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services")
		return nil, err
	}

	var catalogue struct {
		Services []models.ServiceOffering `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services")
		return nil, err
	}

	logger.Info().Int("count", len(catalogue.Services)).Msg("service catalogue loaded")
	return catalogue.Services, nil
}

func initCalendar(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*google.CalendarService, error) {
	calendarService, err := google.NewCalendarService(ctx, cfg.Google.CredentialsFile, cfg.Google.CalendarID, cfg.Google.Location())
	if err != nil {
		logger.Error().Err(err).Msg("init google calendar")
		return nil, err
	}

	if err := calendarService.TestConnection(ctx); err != nil {
		email, _ := google.ServiceAccountEmail(cfg.Google.CredentialsFile)
		logger.Warn().Err(err).
			Str("calendar_id", cfg.Google.CalendarID).
			Str("service_account", email).
			Msg("calendar not reachable yet, share it with the service account")
	} else {
		logger.Info().Str("calendar_id", cfg.Google.CalendarID).Msg("google calendar connected")
	}

	return calendarService, nil
}

func initNotifiers(cfg *config.Config, base *zerolog.Logger) (*notify.Multi, error) {
	logger := logging.Component(base, "notify")
	multi := notify.NewMulti(logger)

	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Email.Provider)) {
	case "sendgrid":
		multi.Add("sendgrid", notify.NewSendGridNotifier(cfg.Notify.Email.SendGrid))
	case "smtp":
		smtpNotifier, err := notify.NewSMTPNotifier(cfg.Notify.Email.SMTP)
		if err != nil {
			logger.Error().Err(err).Msg("init smtp notifier")
			return nil, err
		}
		multi.Add("smtp", smtpNotifier)
	}

	if cfg.Notify.Telegram.BotToken != "" {
		bot, err := notify.NewTelegramBot(cfg.Notify.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("init telegram bot")
			return nil, err
		}
		multi.Add("telegram", notify.NewTelegramNotifier(bot, cfg.Notify.Telegram.ChatID))
	}

	if cfg.Notify.Twilio.AccountSID != "" {
		multi.Add("sms", notify.NewSMSNotifier(cfg.Notify.Twilio))
	}

	logger.Info().Strs("channels", multi.Channels()).Msg("notification channels configured")
	return multi, nil
}

// bookingNotifier returns nil when no channel is configured so bookings are
// reported as notified instead of queuing undeliverable messages.
func bookingNotifier(multi *notify.Multi) domain.Notifier {
	if len(multi.Channels()) == 0 {
		return nil
	}
	return multi
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSlotLocker(redisClient *redis.Client, base *zerolog.Logger) domain.SlotLocker {
	memory := repository.NewMemorySlotLocker()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSlotLocker(
		repository.NewRedisSlotLocker(redisClient),
		memory,
		logging.Component(base, "slot-locker"),
	)
}

func initEventBus(base *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	events.LogAppointments(bus, logging.Component(base, "events"))
	return bus
}

func startDigest(
	ctx context.Context,
	cfg *config.Config,
	lister digest.Lister,
	notifier *notify.Multi,
	loc *time.Location,
	base *zerolog.Logger,
) error {
	if cfg.Digest.Schedule == "" || len(notifier.Channels()) == 0 {
		return nil
	}

	logger := logging.Component(base, "digest")
	d := digest.New(lister, notifier, cfg.Notify.OwnerEmail, loc, logger)
	if _, err := d.Start(ctx, cfg.Digest.Schedule); err != nil {
		logger.Error().Err(err).Str("schedule", cfg.Digest.Schedule).Msg("start daily digest")
		return err
	}
	logger.Info().Str("schedule", cfg.Digest.Schedule).Msg("daily digest scheduled")
	return nil
}

func readinessChecks(calendarService *google.CalendarService, db *database.DB, redisClient *redis.Client) map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{
		"calendar": calendarService.TestConnection,
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
