// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を過ぎてから保持期間（デフォルト24時間）を超えたセッションを定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/elderease/internal/metrics"
)

// DefaultRetention は有効期限切れ後もセッション行を残しておく期間。
const DefaultRetention = 24 * time.Hour

// DefaultInterval はStartに0以下の間隔が渡された場合の実行間隔。
const DefaultInterval = 24 * time.Hour

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at < $1`

// Executor はSQLのExecContextを抽象化するインターフェース。*sql.DB や *sql.Tx を受け付ける。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。何度実行しても結果は同じ。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	Retention time.Duration
	now       func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// loggerがnilの場合はslog.Default()、collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:        db,
		logger:    logger,
		metrics:   collector,
		Retention: DefaultRetention,
		now:       time.Now,
	}
}

// Cutoff はこの時刻より前にexpires_atを迎えたセッションが削除対象になる時刻を返す。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().Add(-j.Retention)
}

// Run は期限切れセッションを削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.Cutoff()

	result, err := j.db.ExecContext(ctx, deleteExpiredSessions, cutoff)
	if err != nil {
		j.logger.Error("セッションの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted session count: %w", err)
	}
	j.metrics.RecordSessionsCleaned(deleted)

	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("deleted_count", deleted),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)
	return deleted, nil
}

// Start は起動直後に1回、以降interval毎にRunを実行する。ctxのキャンセルで戻る。
// intervalが0以下の場合はDefaultIntervalを使う。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("クリーンアップ間隔が不正なため既定値を使います",
			slog.Duration("interval", interval),
			slog.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	// エラーはRun内でログ済み
	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
