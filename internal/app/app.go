package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/elderease/internal/auth"
	"github.com/hitoshi/elderease/internal/config"
	"github.com/hitoshi/elderease/internal/database"
	"github.com/hitoshi/elderease/internal/handler"
	"github.com/hitoshi/elderease/internal/logger"
	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/middleware"
	"github.com/hitoshi/elderease/internal/mood"
	"github.com/hitoshi/elderease/internal/notify"
	"github.com/hitoshi/elderease/internal/onboarding"
	"github.com/hitoshi/elderease/internal/prescription"
	"github.com/hitoshi/elderease/internal/reminder"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
	"github.com/hitoshi/elderease/internal/sos"
	"github.com/hitoshi/elderease/internal/worker/cleanup"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

// defaultHealthcheckPort はSERVER_PORTもPORTも未設定の場合のポート。
const defaultHealthcheckPort = "5000"

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、JSON構造化ログをセットアップしてから環境変数を読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("env", cfg.AppEnv),
		slog.Bool("sms_configured", cfg.SMSConfigured()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// gatewayHosts はSMSゲートウェイのエンドポイントから接続を許可するホストを返す。
// 解析できない場合は空を返し、ホストの制限をかけない。
func gatewayHosts(endpoint string) []string {
	if endpoint == "" {
		endpoint = notify.DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// rateLimiterConfig は設定値（req/min）からレート制限設定を組み立てる。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSOS > 0 {
		rl.SOSRate = rate.Limit(float64(cfg.RateLimitSOS) / 60.0)
		rl.SOSBurst = cfg.RateLimitSOS
	}
	return rl
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返却するRateLimiterはシャットダウン時にStopすること。
func buildRouter(
	cfg *config.Config,
	db *sql.DB,
	collector metrics.MetricsCollector,
	gatherer prometheus.Gatherer,
) (http.Handler, *middleware.RateLimiter) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	moodRepo := repository.NewPostgresMoodRepo(db)
	reminderRepo := repository.NewPostgresReminderRepo(db)
	prescriptionRepo := repository.NewPostgresPrescriptionRepo(db)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, sanitizer, collector, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	onboardingService := onboarding.NewService(userRepo, sessionRepo, sanitizer)
	moodService := mood.NewService(moodRepo, sanitizer)
	reminderService := reminder.NewService(reminderRepo, sanitizer)
	prescriptionService := prescription.NewService(prescriptionRepo, sanitizer, collector)

	// 4. SMSゲートウェイとSOSディスパッチャ
	smsClient := notify.NewClient(
		ssrfGuard.NewSafeClient(cfg.SMSTimeout, gatewayHosts(cfg.MSG91Endpoint)...),
		slog.Default(),
		notify.Config{
			AuthKey:     cfg.MSG91AuthKey,
			SenderID:    cfg.MSG91SenderID,
			Route:       cfg.MSG91Route,
			TemplateID:  cfg.MSG91TemplateID,
			CountryCode: cfg.SOSCountryCode,
			Endpoint:    cfg.MSG91Endpoint,
		},
	)
	dispatcher := sos.NewDispatcher(userRepo, smsClient, ssrfGuard, collector, sos.Config{
		CountryCode: cfg.SOSCountryCode,
	})

	// 5. ルーターの構築
	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		SessionFinder:  sessionRepo,
		OriginPolicy:   middleware.NewOriginPolicy(cfg.CORSAllowedOrigins),
		RateLimiter:    limiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(gatherer),

		AuthService: authService,
		Cookie: handler.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionMaxAge,
			Signer: middleware.NewCookieSigner(cfg.SessionSecret),
		},

		OnboardingService:   onboardingService,
		MoodService:         moodService,
		ReminderService:     reminderService,
		PrescriptionService: prescriptionService,
		UploadMaxBytes:      cfg.UploadMaxBytes,
		SOSDispatcher:       dispatcher,

		DB:        db,
		SMSStatus: smsClient,
	})

	return router, limiter
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "elderease"),
	)

	collector := metrics.NewCollector(reg)

	router, limiter := buildRouter(cfg, db, collector, reg)
	defer limiter.Stop()

	// アップロード受信のためWriteTimeoutは長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// サーバー内でも期限切れセッションを定期削除する
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanup.NewCleanupJob(db, slog.Default(), collector).Start(ctx, cfg.SessionCleanupInterval)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、セッションクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanup.NewCleanupJob(db, slog.Default(), nil).Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// healthcheckPort はヘルスチェック先のポートを環境変数から決定する。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return defaultHealthcheckPort
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
