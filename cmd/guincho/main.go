package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/guincho-facil/internal/api"
	"github.com/digkill/guincho-facil/internal/config"
	"github.com/digkill/guincho-facil/internal/database"
	"github.com/digkill/guincho-facil/internal/notify"
	"github.com/digkill/guincho-facil/internal/quote"
	"github.com/digkill/guincho-facil/internal/repository"
	"github.com/digkill/guincho-facil/internal/service"
	"github.com/digkill/guincho-facil/internal/storage"
	"github.com/digkill/guincho-facil/pkg/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "guincho",
	Short:         "Guincho Fácil metering and subscription API",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logr := logger.New(cfg.LogLevel)
		db, dialect, err := database.Connect(cfg)
		if err != nil {
			return fmt.Errorf("database connect: %w", err)
		}
		defer db.Close()
		if err := database.Migrate(cmd.Context(), db, dialect); err != nil {
			return fmt.Errorf("database migrate: %w", err)
		}
		logr.Info("schema up to date", "driver", dialect)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guincho %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logr := logger.New(cfg.LogLevel)

	db, dialect, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		return fmt.Errorf("database migrate: %w", err)
	}

	providerRepo := repository.NewProviderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db, dialect)
	customizationRepo := repository.NewCustomizationRepository(db, dialect)
	paymentRepo := repository.NewPaymentRepository(db)

	notifier, err := buildNotifier(cfg, logr)
	if err != nil {
		return err
	}
	logos, err := buildStorage(cfg, logr)
	if err != nil {
		return err
	}

	tenantService := service.NewTenantService(service.TenantOptions{
		MainDomains:        cfg.MainDomains,
		MainDomainSuffixes: cfg.MainDomainSuffixes,
		CacheTTL:           cfg.TenantCacheTTL,
		PrimaryColor:       cfg.DefaultPrimaryColor,
		SecondaryColor:     cfg.DefaultSecondary,
		CompanyName:        cfg.DefaultCompanyName,
	}, providerRepo, customizationRepo)

	paymentService := service.NewPaymentService(service.PaymentConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.StripeCurrency,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	}, logr, paymentRepo, providerRepo, subscriptionRepo, notifier)
	if !cfg.BillingEnabled() {
		logr.Warn("stripe not configured, checkout disabled")
	}

	server := api.NewServer(api.Options{
		Addr:               cfg.ListenAddr,
		RequestTimeout:     cfg.RequestTimeout,
		ShutdownTimeout:    cfg.ShutdownTimeout,
		AdminRatePerSecond: cfg.AdminRatePerSecond,
		AdminRateBurst:     cfg.AdminRateBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Tariff: quote.Tariff{
			BaseFee:    cfg.QuoteBaseFee,
			PerKm:      cfg.QuotePerKm,
			MinimumFee: cfg.QuoteMinimumFee,
		},
		Ping: db.PingContext,
	}, logr, api.Services{
		Subscriptions: service.NewSubscriptionService(providerRepo, subscriptionRepo, customizationRepo),
		Metering:      service.NewMeteringService(logr, providerRepo, subscriptionRepo),
		Admin:         service.NewAdminService(logr, cfg.AdminPassword, providerRepo, subscriptionRepo),
		Tenants:       tenantService,
		Payments:      paymentService,
		Providers:     service.NewProviderService(logr, providerRepo, subscriptionRepo, notifier),
		Branding:      service.NewBrandingService(logr, providerRepo, customizationRepo, logos, tenantService),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logr.Info("shutdown complete")
	return nil
}

func buildNotifier(cfg config.Config, logr *slog.Logger) (service.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		return service.NopNotifier(), nil
	}
	n, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramNotifyChatID, logr)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// buildStorage returns nil when S3 is not configured; logo uploads then answer 503.
func buildStorage(cfg config.Config, logr *slog.Logger) (service.ImageStorage, error) {
	if !cfg.StorageEnabled() {
		logr.Warn("s3 not configured, logo uploads disabled")
		return nil, nil
	}
	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("storage uploader: %w", err)
	}
	return uploader, nil
}
