// Package onboarding は利用者プロフィール（オンボーディング）のドメインロジックを提供する。
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
)

// Input はオンボーディングの入力値。Updateでは空文字列のフィールドを変更しない。
type Input struct {
	Name             string `json:"name"`
	Age              string `json:"age"`
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	EmergencyContact string `json:"emergencyContact"`
	MedicalCondition string `json:"medicalCondition"`
	Medicines        string `json:"medicines"`
}

// Status はオンボーディングの完了状態と登録内容。
type Status struct {
	OnboardingCompleted bool
	Data                *model.OnboardingProfile
}

// Service はオンボーディングのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
	}
}

// Complete はプロフィールを保存して完了フラグを立て、セッションのキャッシュを更新する。
// 名前、年齢、緊急連絡先は必須。
func (s *Service) Complete(ctx context.Context, userID, sessionID string, in Input) (*model.User, error) {
	in = s.clean(in)
	if in.Name == "" || in.Age == "" || in.EmergencyContact == "" {
		return nil, model.NewValidationError("Name, age, and emergency contact are required")
	}
	if err := checkLengths(in); err != nil {
		return nil, err
	}

	profile := &model.OnboardingProfile{
		Name:             in.Name,
		Age:              in.Age,
		Address:          in.Address,
		Phone:            in.Phone,
		EmergencyContact: in.EmergencyContact,
		MedicalCondition: in.MedicalCondition,
		Medicines:        in.Medicines,
		UpdatedAt:        time.Now(),
	}

	ok, err := s.userRepo.CompleteOnboarding(ctx, userID, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}
	if !ok {
		return nil, model.NewNotFoundError("User")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}

	s.refreshSession(ctx, sessionID, user)

	slog.Info("onboarding completed", slog.String("user_id", userID))
	return user, nil
}

// GetStatus は完了フラグと登録済みプロフィールを返す。
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}

	return &Status{
		OnboardingCompleted: user.OnboardingCompleted,
		Data:                user.Onboarding,
	}, nil
}

// Update は空でないフィールドだけをプロフィールに上書きする。
// 名前が変わった場合はセッションにキャッシュした表示名も更新する。
func (s *Service) Update(ctx context.Context, userID, sessionID string, in Input) (*model.OnboardingProfile, error) {
	in = s.clean(in)
	if err := checkLengths(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}

	profile := &model.OnboardingProfile{}
	if user.Onboarding != nil {
		*profile = *user.Onboarding
	}
	previousName := profile.Name
	merge(profile, in)
	profile.UpdatedAt = time.Now()

	if err := s.userRepo.SaveOnboardingProfile(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("failed to save onboarding profile: %w", err)
	}

	if profile.Name != previousName {
		user.Onboarding = profile
		s.refreshSession(ctx, sessionID, user)
	}

	slog.Info("onboarding updated", slog.String("user_id", userID))
	return profile, nil
}

// clean は全フィールドをサニタイズしてトリムする。
func (s *Service) clean(in Input) Input {
	return Input{
		Name:             s.sanitizer.Sanitize(in.Name),
		Age:              s.sanitizer.Sanitize(in.Age),
		Address:          s.sanitizer.Sanitize(in.Address),
		Phone:            s.sanitizer.Sanitize(in.Phone),
		EmergencyContact: s.sanitizer.Sanitize(in.EmergencyContact),
		MedicalCondition: s.sanitizer.Sanitize(in.MedicalCondition),
		Medicines:        s.sanitizer.Sanitize(in.Medicines),
	}
}

func checkLengths(in Input) error {
	return model.CheckTextLengths(
		model.Short("name", in.Name),
		model.Short("age", in.Age),
		model.Short("phone", in.Phone),
		model.Short("emergencyContact", in.EmergencyContact),
		model.Long("address", in.Address),
		model.Long("medicalCondition", in.MedicalCondition),
		model.Long("medicines", in.Medicines),
	)
}

// refreshSession はセッションのユーザーキャッシュを置き換える。
// プロフィールは保存済みのため、失敗してもログに残すだけにする。
func (s *Service) refreshSession(ctx context.Context, sessionID string, user *model.User) {
	if sessionID == "" {
		return
	}
	if err := s.sessionRepo.UpdateData(ctx, sessionID, model.NewSessionData(user)); err != nil {
		slog.Warn("failed to refresh session cache",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// merge は空でないフィールドをprofileへ上書きする。
func merge(profile *model.OnboardingProfile, in Input) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&profile.Name, in.Name)
	set(&profile.Age, in.Age)
	set(&profile.Address, in.Address)
	set(&profile.Phone, in.Phone)
	set(&profile.EmergencyContact, in.EmergencyContact)
	set(&profile.MedicalCondition, in.MedicalCondition)
	set(&profile.Medicines, in.Medicines)
}
