// Package auth はメールアドレスとパスワードによる認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのワークファクタ。
const DefaultBcryptCost = 12

// DefaultSessionMaxAge はセッション有効期間（秒）の既定値。7日間。
const DefaultSessionMaxAge = 7 * 24 * 60 * 60

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）。0以下の場合はDefaultSessionMaxAge
	BcryptCost    int // 0の場合はDefaultBcryptCost
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizerService
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = DefaultSessionMaxAge
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		metrics:     collector,
		config:      config,
	}
}

// NormalizeEmail はメールアドレスを保存・検索用に小文字化し前後の空白を除去する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを登録し、認証済みセッションを発行する。
// メールアドレスは正規化してから重複を判定する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Session, error) {
	name := s.sanitizer.Sanitize(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, model.NewValidationError("name, email & password required")
	}
	if err := model.CheckTextLengths(
		model.Short("name", name),
		model.TextField{Name: "email", Value: email, Max: model.MaxEmailLength},
	); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.NewValidationError("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前チェック後の同時登録は一意制約で検出する
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewConflictError("User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered", slog.String("user_id", user.ID))

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Login は認証情報を検証し、認証済みセッションを発行する。
// 未登録とパスワード不一致は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("email & password required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		s.metrics.RecordLoginFailure()
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLoginFailure()
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetProfile はセッションにキャッシュされたユーザー情報を返す。ストアは参照しない。
func (s *Service) GetProfile(session *model.Session) *model.PublicUser {
	if session == nil {
		return nil
	}
	return session.Data.User
}

// SessionStatus はセッションIDに対応するセッションデータを返す。
// セッションがない、または期限切れの場合は未認証のデータを返す。
func (s *Service) SessionStatus(ctx context.Context, sessionID string) (model.SessionData, error) {
	if sessionID == "" {
		return model.SessionData{}, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return model.SessionData{}, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return model.SessionData{}, nil
	}
	return session.Data, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Data:      model.NewSessionData(user),
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
