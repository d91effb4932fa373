package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/elderease/internal/model"
	"github.com/lib/pq"
)

// PostgresMoodRepo はPostgreSQLを使用した気分記録リポジトリ。
type PostgresMoodRepo struct {
	db *sql.DB
}

// NewPostgresMoodRepo はPostgresMoodRepoを生成する。
func NewPostgresMoodRepo(db *sql.DB) *PostgresMoodRepo {
	return &PostgresMoodRepo{db: db}
}

// Create は気分記録を作成する。tagsはtext[]として保存する。
func (r *PostgresMoodRepo) Create(ctx context.Context, mood *model.Mood) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO moods (id, user_id, mood_label, mood_emoji, date_iso, time, timestamp, tags, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		mood.ID, mood.UserID, mood.MoodLabel, mood.MoodEmoji, mood.DateISO,
		mood.Time, mood.Timestamp, pq.Array(mood.Tags), mood.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create mood: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの気分記録をtimestamp降順で最大limit件返す。
// date_isoはYYYY-MM-DD形式のため、辞書順比較が日付順と一致する。
func (r *PostgresMoodRepo) ListByUserID(ctx context.Context, userID string, filter model.MoodFilter, limit int) ([]*model.Mood, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Since != "" {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("date_iso >= $%d", len(args)))
	}
	if filter.Until != "" {
		args = append(args, filter.Until)
		conds = append(conds, fmt.Sprintf("date_iso <= $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, user_id, mood_label, mood_emoji, date_iso, time, timestamp, tags, notes
		 FROM moods
		 WHERE %s
		 ORDER BY timestamp DESC
		 LIMIT $%d`,
		strings.Join(conds, " AND "), len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	defer rows.Close()

	moods := make([]*model.Mood, 0)
	for rows.Next() {
		m := &model.Mood{}
		var tags pq.StringArray
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.MoodLabel, &m.MoodEmoji, &m.DateISO,
			&m.Time, &m.Timestamp, &tags, &m.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mood: %w", err)
		}
		m.Tags = []string(tags)
		if m.Tags == nil {
			m.Tags = []string{}
		}
		moods = append(moods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moods: %w", err)
	}

	return moods, nil
}

// DeleteByIDAndUserID は所有者が一致する気分記録を削除する。
func (r *PostgresMoodRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM moods WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete mood: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ MoodRepository = (*PostgresMoodRepo)(nil)
