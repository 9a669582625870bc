// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/infra/adapters/captcha"
	"esim-storefront/internal/infra/adapters/connectivity"
	"esim-storefront/internal/infra/adapters/notify"
	payAdapters "esim-storefront/internal/infra/adapters/payment"
	tele "esim-storefront/internal/infra/adapters/telegram"
	"esim-storefront/internal/infra/api"
	pg "esim-storefront/internal/infra/db/postgres"
	"esim-storefront/internal/infra/events"
	httpserver "esim-storefront/internal/infra/http"
	"esim-storefront/internal/infra/i18n"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/infra/metrics"
	"esim-storefront/internal/infra/qrcode"
	red "esim-storefront/internal/infra/redis"
	"esim-storefront/internal/infra/sched"
	"esim-storefront/internal/infra/security"
	"esim-storefront/internal/infra/storage"
	"esim-storefront/internal/infra/worker"
	"esim-storefront/internal/usecase"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("development mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(cfg.Database.URL, logger); err != nil {
			return err
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if encKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("security.encryption_key not set; using the insecure development key")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	cipher, err := security.NewFieldCipher(encKey)
	if err != nil {
		return err
	}

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	lineRepo := pg.NewLineRepo(pool, cipher)
	messageRepo := pg.NewMessageRepo(pool)
	planRepo := pg.NewPlanModelCacheDecorator(pg.NewPlanModelRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Adapters ----
	gateways, err := buildGateways(cfg, logger)
	if err != nil {
		return err
	}
	var invoicer adapter.Invoicer
	if cfg.Payment.Invoice4U.Email != "" {
		inv, err := payAdapters.NewInvoice4UInvoicer(cfg.Payment.Invoice4U)
		if err != nil {
			return err
		}
		invoicer = inv
	}

	var provider adapter.ConnectivityProvider = connectivity.NewNoopProvider()
	if !cfg.KeepGo.Noop {
		kg, err := connectivity.NewKeepGoProvider(cfg.KeepGo)
		if err != nil {
			return err
		}
		provider = kg
	} else {
		logger.Warn().Msg("keepgo.noop set; lines are allocated in memory")
	}

	logSender := notify.NewLogSender(logger)
	var mailer adapter.Mailer = logSender
	if cfg.Email.APIKey != "" {
		if mailer, err = notify.NewSendGridMailer(cfg.Email); err != nil {
			return err
		}
	}
	var whatsapp adapter.WhatsAppSender = logSender
	if cfg.Twilio.AccountSID != "" {
		if whatsapp, err = notify.NewTwilioWhatsApp(cfg.Twilio); err != nil {
			return err
		}
	}

	var verifier adapter.CaptchaVerifier = captcha.Static(1)
	if !cfg.Captcha.Disabled {
		if verifier, err = captcha.NewReCaptcha(cfg.Captcha.Secret, ""); err != nil {
			return err
		}
	}

	var qrStore adapter.QRCodeStore = storage.DataURIStore{}
	if cfg.Storage.S3.Bucket != "" {
		if qrStore, err = storage.NewS3QRStore(ctx, cfg.Storage.S3); err != nil {
			return err
		}
	}

	var publisher adapter.EventPublisher = events.NewLogPublisher(logger)
	if cfg.Events.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Events.AMQP.URL, cfg.Events.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	var alerts adapter.OpsAlerter = tele.NewNoopAlerter(logger)
	if cfg.Telegram.Token != "" {
		if alerts, err = tele.NewBotAlerter(cfg.Telegram, ""); err != nil {
			return err
		}
	}

	translator, err := i18n.NewTranslator(i18n.LocalesFS, "he", "en")
	if err != nil {
		return err
	}

	// ---- Use cases ----
	site := strings.TrimRight(cfg.Site.BaseURL, "/")
	store := usecase.NewOrderStore(txm, orderRepo, paymentRepo, couponRepo, planRepo, logger)
	provisioner := usecase.NewLineProvisioner(provider, qrcode.Renderer{}, qrStore, lineRepo, planRepo, cfg.Provisioning.Timeout, logger)
	dispatcher := usecase.NewNotificationDispatcher(mailer, whatsapp, messageRepo, planRepo, translator, logger)
	checkout := usecase.NewCheckoutUseCase(usecase.CheckoutDeps{
		Store:       store,
		Gateways:    gateways,
		Provisioner: provisioner,
		Notifier:    dispatcher,
		Users:       userRepo,
		Coupons:     couponRepo,
		Captcha:     verifier,
		Invoicer:    invoicer,
		Events:      publisher,
		Alerts:      alerts,
		Locker:      red.NewLocker(redisClient),
	}, usecase.CheckoutConfig{
		CallbackURL:     site + "/order/payment/callback",
		CancelURL:       site + cfg.Site.ErrorPath + "?error=Order",
		DefaultProvider: cfg.Payment.DefaultProvider,
		Currency:        cfg.Payment.Currency,
		MinCaptchaScore: cfg.Captcha.MinScore,
		CaptchaDisabled: cfg.Captcha.Disabled,
		CaptureLockTTL:  cfg.Payment.CaptureLockTTL,
	}, logger)
	maintenance := usecase.NewMaintenanceUseCase(checkout, orderRepo, paymentRepo, userRepo, usecase.MaintenanceConfig{
		StaleOrderAfter: cfg.Scheduler.StaleOrderAfter,
		BatchSize:       cfg.Scheduler.BatchSize,
	}, logger)
	lineSync := usecase.NewLineSyncUseCase(provider, lineRepo, orderRepo, store, publisher, cfg.Scheduler.Workers, cfg.Scheduler.BatchSize, logger)
	marketing := usecase.NewMarketingUseCase(orderRepo, userRepo, messageRepo, dispatcher, usecase.MarketingConfig{
		AbandonedCartEnabled: cfg.Marketing.AbandonedCart.Enabled,
		AbandonedCartSteps:   cfg.Marketing.AbandonedCart.Steps,
		FeedbackEnabled:      cfg.Marketing.Feedback.Enabled,
		FeedbackAfter:        cfg.Marketing.Feedback.After,
		ResumeURL:            site + "/order/payment",
		FeedbackURL:          site + "/feedback",
		BatchSize:            cfg.Scheduler.BatchSize,
	}, logger)

	// ---- HTTP ----
	sessions := api.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, cfg.Auth.TTL, !cfg.Runtime.Dev)
	apiServer := api.NewServer(checkout, sessions, red.NewRateLimiter(redisClient), api.Pages{
		BaseURL: site,
		Success: cfg.Site.SuccessPath,
		Pending: cfg.Site.PendingPath,
		Error:   cfg.Site.ErrorPath,
		Auth:    cfg.Site.AuthPath,
	}, api.Options{
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		OrderRateLimit:  cfg.HTTP.OrderRateLimit,
		RateLimitWindow: cfg.HTTP.RateLimitWindow,
		Health: map[string]api.HealthCheck{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":    redisClient.Ping,
		},
	}, logger)
	srv := httpserver.NewServer(cfg.HTTP, apiServer.Router(), logger)

	// ---- Background jobs ----
	pendingPool := worker.NewPool(cfg.Scheduler.Workers, logger)
	jobs := []*sched.Job{
		sched.NewPendingLineWorker(cfg.Scheduler.PendingLineInterval, maintenance, pendingPool, logger),
		sched.NewLineSyncWorker(cfg.Scheduler.LineSyncInterval, lineSync, logger),
		sched.NewStaleSweepWorker(cfg.Scheduler.StaleSweepInterval, maintenance, logger),
		sched.NewMarketingWorker(cfg.Scheduler.MarketingInterval, marketing, logger),
	}
	if invoicer != nil {
		jobs = append(jobs, sched.NewInvoiceReconcileWorker(cfg.Scheduler.InvoiceInterval, maintenance, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	pendingPool.Start(gctx)
	defer pendingPool.Stop()

	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})
	for _, j := range jobs {
		j := j
		g.Go(func() error { return j.Run(gctx) })
	}
	logger.Info().Str("addr", cfg.HTTP.Addr).Strs("providers", gateways.Names()).Int("jobs", len(jobs)).Msg("storefront started")
	return g.Wait()
}

// buildGateways registers every configured clearing provider. The noop gateway is
// only available in development.
func buildGateways(cfg *config.Config, logger *zerolog.Logger) (*payAdapters.Registry, error) {
	reg := payAdapters.NewRegistry(cfg.Payment.DefaultProvider)
	if cfg.Payment.Invoice4U.APIKey != "" {
		gw, err := payAdapters.NewInvoice4UGateway(cfg.Payment.Invoice4U)
		if err != nil {
			return nil, err
		}
		reg.Register("creditcard", gw)
	}
	if cfg.Payment.PayPal.ClientID != "" {
		gw, err := payAdapters.NewPayPalGateway(cfg.Payment.PayPal)
		if err != nil {
			return nil, err
		}
		reg.Register("paypal", gw)
	}
	if cfg.Runtime.Dev {
		reg.Register("noop", payAdapters.NewNoopPaymentGateway())
	}
	if _, err := reg.Gateway(""); err != nil {
		logger.Warn().Str("default_provider", cfg.Payment.DefaultProvider).Msg("default payment provider is not configured")
	}
	return reg, nil
}
