package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger        *slog.Logger // nilの場合はslog.Default()
	SessionFinder middleware.SessionFinder
	OriginPolicy  *middleware.OriginPolicy
	RateLimiter   *middleware.RateLimiter
	Metrics       metrics.MetricsCollector
	// MetricsHandler は/metricsで公開するハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	Cookie      CookieConfig

	OnboardingService   OnboardingServiceInterface
	MoodService         MoodServiceInterface
	ReminderService     ReminderServiceInterface
	PrescriptionService PrescriptionServiceInterface
	UploadMaxBytes      int64
	SOSDispatcher       SOSDispatcherInterface

	// ヘルスチェック
	DB        Pinger
	SMSStatus SMSStatus
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF(Origin) → Metrics → SessionMiddleware → RateLimit(General)
//
// /health、/metrics、/api/session-check、登録・ログイン・ログアウトはセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookie.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.OriginPolicy))
	r.Use(middleware.NewCSRFMiddleware(deps.OriginPolicy))
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie)
	onboardingHandler := NewOnboardingHandler(deps.OnboardingService)
	moodHandler := NewMoodHandler(deps.MoodService)
	reminderHandler := NewReminderHandler(deps.ReminderService)
	prescriptionHandler := NewPrescriptionHandler(deps.PrescriptionService, deps.UploadMaxBytes)
	sosHandler := NewSOSHandler(deps.SOSDispatcher)
	healthHandler := NewHealthHandler(deps.DB, deps.SMSStatus)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/api/session-check", authHandler.SessionCheck)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.Cookie.Signer))
			r.Get("/profile", authHandler.Profile)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.Cookie.Signer))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/onboarding", func(r chi.Router) {
			r.Post("/complete", onboardingHandler.Complete)
			r.Get("/status", onboardingHandler.Status)
			r.Put("/update", onboardingHandler.Update)
		})

		r.Route("/api/moods", func(r chi.Router) {
			r.Post("/", moodHandler.Add)
			r.Get("/", moodHandler.List)
			r.Delete("/{id}", moodHandler.Delete)
		})

		r.Route("/api/reminders", func(r chi.Router) {
			r.Get("/", reminderHandler.List)
			r.Post("/", reminderHandler.Create)
			r.Patch("/{id}", reminderHandler.Update)
			r.Delete("/{id}", reminderHandler.Delete)
		})

		r.Route("/api/prescriptions", func(r chi.Router) {
			r.Post("/upload", prescriptionHandler.Upload)
			r.Get("/", prescriptionHandler.List)
			r.Get("/files/{id}", prescriptionHandler.File)
			r.Delete("/{id}", prescriptionHandler.Delete)
		})

		// POST /api/sos/send - SOS送信（SOS専用レート制限を追加）
		r.With(deps.RateLimiter.SOSMiddleware()).Post("/api/sos/send", sosHandler.Send)
	})

	return r
}
