package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/config"
	"github.com/MarkoPoloResearchLab/photobook/internal/httpapi"
	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/internal/oplog"
	"github.com/MarkoPoloResearchLab/photobook/internal/payment"
	"github.com/MarkoPoloResearchLab/photobook/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagEnvFile           = "env-file"
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagJWTSigningKey     = "jwt-signing-key"
	flagJWTIssuer         = "jwt-issuer"
	flagJWTCookieName     = "jwt-cookie-name"
	flagRequestTimeout    = "request-timeout"
	flagPushEndpoint      = "push-endpoint"
	flagPushAccessToken   = "push-access-token"
	flagPaymentBaseURL    = "payment-base-url"
	flagPaymentSecretKey  = "payment-secret-key"
	flagSweepInterval     = "sweep-interval"
	flagMinimumMatchScore = "min-match-score"
	envPrefix             = "PHOTOBOOK"
	defaultEnvFile        = ".env"
	driverPostgres        = "postgres"
	driverSQLite          = "sqlite"
	sqliteInMemory        = ":memory:"
	defaultSQLiteFile     = "photobook.db"
	pushTimeout           = 5 * time.Second
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "photobookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "photobookd",
		Short:         "Photographer marketplace booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(flagEnvFile, defaultEnvFile, "optional dotenv file loaded before reading the environment")
	cmd.PersistentFlags().String(flagDatabaseURL, "", "PostgreSQL URL or sqlite path")
	cmd.AddCommand(newServeCommand(), newSweepCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return err
			}
			cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
			cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
			cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
			cfg.SessionSigningKey = v.GetString(flagJWTSigningKey)
			cfg.SessionIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
			cfg.SessionCookieName = strings.TrimSpace(v.GetString(flagJWTCookieName))
			cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
			cfg.PushEndpoint = strings.TrimSpace(v.GetString(flagPushEndpoint))
			cfg.PushAccessToken = v.GetString(flagPushAccessToken)
			cfg.PaymentBaseURL = strings.TrimSpace(v.GetString(flagPaymentBaseURL))
			cfg.PaymentSecretKey = v.GetString(flagPaymentSecretKey)
			cfg.SweepInterval = v.GetDuration(flagSweepInterval)
			cfg.MinimumMatchScore = v.GetFloat64(flagMinimumMatchScore)
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 session signing key (required)")
	cmd.Flags().String(flagJWTIssuer, "", "expected session issuer")
	cmd.Flags().String(flagJWTCookieName, "", "session cookie name")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request timeout")
	cmd.Flags().String(flagPushEndpoint, "", "Expo push service host (https://exp.host), push is disabled when empty")
	cmd.Flags().String(flagPushAccessToken, "", "Expo push access token")
	cmd.Flags().String(flagPaymentBaseURL, "", "Stripe API base URL override")
	cmd.Flags().String(flagPaymentSecretKey, "", "Stripe secret key, payment lookup is disabled when empty")
	cmd.Flags().Duration(flagSweepInterval, 0, "run the expiry sweep on this interval, disabled when 0")
	cmd.Flags().Float64(flagMinimumMatchScore, 0, "minimum match score, 0 selects the default")
	return cmd
}

func newSweepCommand() *cobra.Command {
	cfg := &config.Config{}
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale quotes, requests and unpaid reservations once",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return err
			}
			cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
			return cfg.ValidateStorage()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), cfg)
		},
	}
}

// loadViper binds every flag of cmd to PHOTOBOOK_* environment variables,
// after loading the optional dotenv file.
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	dispatcherOptions := []notify.Option{}
	if cfg.PushEndpoint != "" {
		pusher, err := notify.NewExpoPusher(cfg.PushEndpoint, cfg.PushAccessToken, &http.Client{Timeout: pushTimeout})
		if err != nil {
			return err
		}
		dispatcherOptions = append(dispatcherOptions, notify.WithPusher(pusher), notify.WithPushTimeout(pushTimeout))
	}
	dispatcher, err := notify.NewDispatcher(gormstore.NewNotificationStore(gormDB), logger.Named("notify"), dispatcherOptions...)
	if err != nil {
		return fmt.Errorf("dispatcher init: %w", err)
	}

	serviceOptions := []booking.ServiceOption{
		booking.WithOperationLogger(oplog.New(logger)),
		booking.WithEventNotifier(dispatcher),
	}
	if cfg.PaymentSecretKey != "" {
		paymentClient, err := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentSecretKey, nil, logger)
		if err != nil {
			return err
		}
		serviceOptions = append(serviceOptions, booking.WithPaymentLookup(paymentClient))
	}
	clock := func() time.Time { return time.Now().UTC() }
	bookingService, err := booking.NewService(gormstore.New(gormDB), clock, serviceOptions...)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	authenticator, err := httpapi.NewAuthenticator(cfg.SessionSigningKey, cfg.SessionIssuer, cfg.SessionCookieName)
	if err != nil {
		return err
	}
	handler, err := httpapi.NewHandler(httpapi.Config{
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestTimeout:    cfg.RequestTimeout,
		MinimumMatchScore: cfg.MinimumMatchScore,
	}, bookingService, dispatcher, authenticator, logger.Named("http"))
	if err != nil {
		return err
	}

	if cfg.SweepInterval > 0 {
		go runSweepLoop(ctx, bookingService, cfg.SweepInterval, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := httpapi.Serve(ctx, server, logger)
	dispatcher.Wait()
	return serveErr
}

// runSweepLoop sweeps on every tick until ctx ends. Overlapping sweeps from
// other replicas are harmless: every update is predicated on the old status.
func runSweepLoop(ctx context.Context, service *booking.Service, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := service.SweepExpired(ctx)
			if err != nil {
				logger.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			logSweep(logger, result)
		}
	}
}

func runSweep(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	service, err := booking.NewService(gormstore.New(gormDB), func() time.Time { return time.Now().UTC() },
		booking.WithOperationLogger(oplog.New(logger)))
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}
	result, err := service.SweepExpired(ctx)
	if err != nil {
		return err
	}
	logSweep(logger, result)
	return nil
}

func logSweep(logger *zap.Logger, result booking.SweepResult) {
	logger.Info("expiry sweep completed",
		zap.Int64("quotes_expired", result.QuotesExpired),
		zap.Int64("requests_expired", result.RequestsExpired),
		zap.Int64("reservations_expired", result.ReservationsExpired))
}

func openDatabase(ctx context.Context, databaseURL string) (*gorm.DB, func() error, error) {
	target, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, nil, err
	}
	dialector := sqlite.Open(target.dsn)
	if target.driver == driverPostgres {
		dialector = postgres.Open(target.dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", target.driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db.WithContext(ctx), sqlDB.Close, nil
}

// databaseTarget is a parsed --database-url: the gorm driver and the DSN its
// dialector opens.
type databaseTarget struct {
	driver string
	dsn    string
}

// parseDatabaseURL accepts postgres:// and postgresql:// URLs, sqlite:// URLs,
// bare SQLite file paths and :memory:. SQLite parent directories are created.
func parseDatabaseURL(databaseURL string) (databaseTarget, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return databaseTarget{}, errors.New("database url is empty")
	}
	scheme, rest, hasScheme := strings.Cut(databaseURL, "://")
	if !hasScheme {
		return sqliteTarget(databaseURL)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return databaseTarget{driver: driverPostgres, dsn: databaseURL}, nil
	case driverSQLite:
		if rest == "" || rest == "/" {
			rest = defaultSQLiteFile
		}
		return sqliteTarget(rest)
	}
	return databaseTarget{}, fmt.Errorf("unsupported database scheme %q", scheme)
}

func sqliteTarget(path string) (databaseTarget, error) {
	if path == sqliteInMemory {
		return databaseTarget{driver: driverSQLite, dsn: path}, nil
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return databaseTarget{}, fmt.Errorf("create sqlite directory: %w", err)
	}
	return databaseTarget{driver: driverSQLite, dsn: path}, nil
}
