package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/elderease/internal/model"
)

// PostgresPrescriptionRepo はPostgreSQLを使用した処方箋リポジトリ。
// uploadsとprescriptionsの2テーブルを扱う。
type PostgresPrescriptionRepo struct {
	db *sql.DB
}

// NewPostgresPrescriptionRepo はPostgresPrescriptionRepoを生成する。
func NewPostgresPrescriptionRepo(db *sql.DB) *PostgresPrescriptionRepo {
	return &PostgresPrescriptionRepo{db: db}
}

// CreateWithUpload はUploadとPrescriptionを同一トランザクションで作成する。
func (r *PostgresPrescriptionRepo) CreateWithUpload(ctx context.Context, upload *model.Upload, prescription *model.Prescription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO uploads (id, user_id, file_name, file_type, file_data, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		upload.ID, upload.UserID, upload.FileName, upload.FileType, upload.FileData, upload.UploadedAt,
	); err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prescriptions (id, user_id, name, url, date)
		 VALUES ($1, $2, $3, $4, $5)`,
		prescription.ID, prescription.UserID, prescription.Name, prescription.URL, prescription.Date,
	); err != nil {
		return fmt.Errorf("failed to insert prescription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの処方箋をdate降順で最大limit件返す。
func (r *PostgresPrescriptionRepo) ListByUserID(ctx context.Context, userID string, filter model.PrescriptionFilter, limit int) ([]*model.Prescription, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, user_id, name, url, date
		 FROM prescriptions
		 WHERE %s
		 ORDER BY date DESC
		 LIMIT $%d`,
		strings.Join(conds, " AND "), len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := make([]*model.Prescription, 0)
	for rows.Next() {
		p := &model.Prescription{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.URL, &p.Date); err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prescriptions: %w", err)
	}

	return prescriptions, nil
}

// FindByID は指定IDの処方箋を取得する。見つからない場合はnilを返す。
func (r *PostgresPrescriptionRepo) FindByID(ctx context.Context, id string) (*model.Prescription, error) {
	p := &model.Prescription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, url, date FROM prescriptions WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.URL, &p.Date)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prescription: %w", err)
	}
	return p, nil
}

// FindUploadByID は指定IDのアップロードをファイルデータ込みで取得する。見つからない場合はnilを返す。
func (r *PostgresPrescriptionRepo) FindUploadByID(ctx context.Context, id string) (*model.Upload, error) {
	u := &model.Upload{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, file_type, file_data, uploaded_at FROM uploads WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.UserID, &u.FileName, &u.FileType, &u.FileData, &u.UploadedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find upload: %w", err)
	}
	return u, nil
}

// DeleteWithUpload は処方箋を削除する。uploadIDが空でなければ同一トランザクションでUploadも削除する。
func (r *PostgresPrescriptionRepo) DeleteWithUpload(ctx context.Context, prescriptionID, uploadID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if uploadID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, uploadID); err != nil {
			return fmt.Errorf("failed to delete upload: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, prescriptionID); err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PrescriptionRepository = (*PostgresPrescriptionRepo)(nil)
