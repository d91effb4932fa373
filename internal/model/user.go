// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（アカウント）を表す。
// PasswordHashはAPIレスポンスに含めてはならない。公開時はPublicUserへ射影する。
type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	OnboardingCompleted bool
	Onboarding          *OnboardingProfile
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName はSOSメッセージ等で使う表示名を返す。
// オンボーディング名、アカウント名、メールアドレス、"User"の順にフォールバックする。
func (u *User) DisplayName() string {
	if u.Onboarding != nil && u.Onboarding.Name != "" {
		return u.Onboarding.Name
	}
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return "User"
}

// Public はパスワードハッシュを含まない公開用の射影を返す。
func (u *User) Public() *PublicUser {
	name := u.Name
	if u.Onboarding != nil && u.Onboarding.Name != "" {
		name = u.Onboarding.Name
	}
	return &PublicUser{
		ID:                  u.ID,
		Name:                name,
		Email:               u.Email,
		OnboardingCompleted: u.OnboardingCompleted,
	}
}

// PublicUser はセッションにキャッシュされ、クライアントに返されるユーザー情報。
type PublicUser struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
}

// OnboardingProfile はオンボーディングで登録する利用者プロフィール。
// 年齢は入力値をそのまま文字列で保持する。
type OnboardingProfile struct {
	Name             string    `json:"name"`
	Age              string    `json:"age"`
	Address          string    `json:"address"`
	Phone            string    `json:"phone"`
	EmergencyContact string    `json:"emergencyContact"`
	MedicalCondition string    `json:"medicalCondition"`
	Medicines        string    `json:"medicines"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Session はユーザーのログインセッションを表す。
// Dataはsessions.dataカラム(jsonb)に保存される。
type Session struct {
	ID        string
	UserID    string
	Data      SessionData
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionData はセッションに保持する認証フラグとユーザー情報のキャッシュ。
type SessionData struct {
	Authenticated bool        `json:"authenticated"`
	User          *PublicUser `json:"user,omitempty"`
}

// NewSessionData はユーザーを認証済みとしてキャッシュするセッションデータを生成する。
func NewSessionData(u *User) SessionData {
	return SessionData{Authenticated: true, User: u.Public()}
}
