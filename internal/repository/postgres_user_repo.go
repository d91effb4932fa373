package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/elderease/internal/model"
	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const selectUserWithProfile = `
	SELECT u.id, u.name, u.email, u.password_hash, u.onboarding_completed, u.created_at, u.updated_at,
	       p.name, p.age, p.address, p.phone, p.emergency_contact, p.medical_condition, p.medicines, p.updated_at
	FROM users u
	LEFT JOIN onboarding_profiles p ON p.user_id = u.id`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUserWithProfile+` WHERE u.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUserWithProfile+` WHERE u.email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, onboarding_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.OnboardingCompleted, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CompleteOnboarding はプロフィールのUPSERTと完了フラグの更新を同一トランザクションで行う。
func (r *PostgresUserRepo) CompleteOnboarding(ctx context.Context, userID string, profile *model.OnboardingProfile) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET onboarding_completed = TRUE, updated_at = $2 WHERE id = $1`,
		userID, profile.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update onboarding flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := upsertProfile(ctx, tx, userID, profile); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// SaveOnboardingProfile はプロフィールを上書き保存する。完了フラグは変更しない。
func (r *PostgresUserRepo) SaveOnboardingProfile(ctx context.Context, userID string, profile *model.OnboardingProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProfile(ctx, tx, userID, profile); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET updated_at = $2 WHERE id = $1`, userID, profile.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertProfile(ctx context.Context, tx *sql.Tx, userID string, p *model.OnboardingProfile) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO onboarding_profiles
		   (user_id, name, age, address, phone, emergency_contact, medical_condition, medicines, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   age = EXCLUDED.age,
		   address = EXCLUDED.address,
		   phone = EXCLUDED.phone,
		   emergency_contact = EXCLUDED.emergency_contact,
		   medical_condition = EXCLUDED.medical_condition,
		   medicines = EXCLUDED.medicines,
		   updated_at = EXCLUDED.updated_at`,
		userID, p.Name, p.Age, p.Address, p.Phone, p.EmergencyContact, p.MedicalCondition, p.Medicines, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert onboarding profile: %w", err)
	}
	return nil
}

// scanUser はselectUserWithProfileの1行をUserに変換する。行がない場合はnil, nilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var (
		name, age, address, phone, emergency, condition, medicines sql.NullString
		profileUpdatedAt                                           sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.OnboardingCompleted, &user.CreatedAt, &user.UpdatedAt,
		&name, &age, &address, &phone, &emergency, &condition, &medicines, &profileUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// LEFT JOINで行がない場合はプロフィール未登録
	if profileUpdatedAt.Valid {
		user.Onboarding = &model.OnboardingProfile{
			Name:             nullStringValue(name),
			Age:              nullStringValue(age),
			Address:          nullStringValue(address),
			Phone:            nullStringValue(phone),
			EmergencyContact: nullStringValue(emergency),
			MedicalCondition: nullStringValue(condition),
			Medicines:        nullStringValue(medicines),
			UpdatedAt:        profileUpdatedAt.Time.In(time.Local),
		}
	}
	return user, nil
}

// nullStringValue はsql.NullStringの値を返す。NULLの場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// isUniqueViolation はエラーが一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
