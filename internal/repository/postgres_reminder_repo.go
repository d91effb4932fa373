package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/elderease/internal/model"
)

// PostgresReminderRepo はPostgreSQLを使用したリマインダーリポジトリ。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

// ListByUserID はユーザーのリマインダーを(date, time)の昇順で返す。
// timeは"3pm"のような自由入力のため、並びはバイト順の文字列比較になる。
func (r *PostgresReminderRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, time, date, done, created_at, updated_at
		 FROM reminders
		 WHERE user_id = $1
		 ORDER BY date COLLATE "C" ASC, time COLLATE "C" ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	reminders := make([]*model.Reminder, 0)
	for rows.Next() {
		rem := &model.Reminder{}
		if err := rows.Scan(
			&rem.ID, &rem.UserID, &rem.Title, &rem.Time, &rem.Date, &rem.Done, &rem.CreatedAt, &rem.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return reminders, nil
}

// FindByIDAndUserID は所有者が一致するリマインダーを取得する。見つからない場合はnilを返す。
func (r *PostgresReminderRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Reminder, error) {
	rem := &model.Reminder{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, time, date, done, created_at, updated_at
		 FROM reminders
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&rem.ID, &rem.UserID, &rem.Title, &rem.Time, &rem.Date, &rem.Done, &rem.CreatedAt, &rem.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}
	return rem, nil
}

// Create はリマインダーを作成する。
func (r *PostgresReminderRepo) Create(ctx context.Context, rem *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (id, user_id, title, time, date, done, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rem.ID, rem.UserID, rem.Title, rem.Time, rem.Date, rem.Done, rem.CreatedAt, rem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// Update はリマインダーの可変フィールドを更新する。user_idは更新対象に含めない。
func (r *PostgresReminderRepo) Update(ctx context.Context, rem *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders
		 SET title = $3, time = $4, date = $5, done = $6, updated_at = $7
		 WHERE id = $1 AND user_id = $2`,
		rem.ID, rem.UserID, rem.Title, rem.Time, rem.Date, rem.Done, rem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// DeleteByIDAndUserID は所有者が一致するリマインダーを削除する。
func (r *PostgresReminderRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ ReminderRepository = (*PostgresReminderRepo)(nil)
