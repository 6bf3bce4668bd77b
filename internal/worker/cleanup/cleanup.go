// Package cleanup は定期実行のメンテナンスジョブを提供する。
// 期限切れAPIトークンの削除と、どのレシピからも参照されなくなった
// 孤児メディアファイルの回収を日次バッチで行う。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/recipeman/internal/image"
	"github.com/hitoshi/recipeman/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TokenPurgeJob は期限切れAPIトークンの削除ジョブ。
// 冪等な削除処理で、対象がない場合もエラーにならない。
type TokenPurgeJob struct {
	db      Executor
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewTokenPurgeJob は新しいTokenPurgeJobを生成する。collectorはnilでもよい。
func NewTokenPurgeJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *TokenPurgeJob {
	return &TokenPurgeJob{db: db, logger: logger, metrics: collector}
}

// Run は期限切れトークンを削除する。
func (j *TokenPurgeJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM api_tokens WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("期限切れトークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れトークンの削除に失敗: %w", err)
	}

	purgedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordTokensPurged(int(purgedCount))
	}

	duration := time.Since(start)
	j.logger.Info("トークン削除ジョブが完了しました",
		slog.Int64("purged_count", purgedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// LivePathLister は使用中の画像パス一覧を取得するインターフェース。
type LivePathLister interface {
	ListLiveImagePaths(ctx context.Context) ([]string, error)
}

// Querier はSQLのQueryContextを抽象化するインターフェース。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// DBPathLister はレシピテーブルから使用中の画像パスを取得する実装。
type DBPathLister struct {
	db Querier
}

// NewDBPathLister はDBPathListerを生成する。
func NewDBPathLister(db Querier) *DBPathLister {
	return &DBPathLister{db: db}
}

// ListLiveImagePaths は全レシピの空でない画像パスを返す。
func (l *DBPathLister) ListLiveImagePaths(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT image_path FROM recipes WHERE image_path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("使用中画像パスの取得に失敗: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("画像パスの読み取りに失敗: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

var _ LivePathLister = (*DBPathLister)(nil)

// OrphanSweepJob はどのレシピからも参照されなくなったメディアファイルの回収ジョブ。
// 削除に失敗した画像ファイルや、DB更新前にプロセスが落ちて残ったファイルを拾う。
type OrphanSweepJob struct {
	lister   LivePathLister
	mediaDir string
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	// GracePeriod 以内に更新されたファイルはアップロード進行中とみなして残す。
	GracePeriod time.Duration
}

// NewOrphanSweepJob は新しいOrphanSweepJobを生成する。collectorはnilでもよい。
func NewOrphanSweepJob(lister LivePathLister, mediaDir string, logger *slog.Logger, collector metrics.MetricsCollector) *OrphanSweepJob {
	return &OrphanSweepJob{
		lister:      lister,
		mediaDir:    mediaDir,
		logger:      logger,
		metrics:     collector,
		GracePeriod: time.Hour,
	}
}

// Run はメディアディレクトリを走査し、使用中でないファイルを削除する。
// 使用中の画像のサムネイルは残す。個々のファイル削除の失敗はジョブを止めない。
func (j *OrphanSweepJob) Run(ctx context.Context) error {
	start := time.Now()

	livePaths, err := j.lister.ListLiveImagePaths(ctx)
	if err != nil {
		j.logger.Error("使用中画像パスの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	live := make(map[string]struct{}, len(livePaths)*2)
	for _, p := range livePaths {
		name := filepath.Base(p)
		live[name] = struct{}{}
		live[image.ThumbnailName(name)] = struct{}{}
	}

	entries, err := os.ReadDir(j.mediaDir)
	if err != nil {
		j.logger.Error("メディアディレクトリの走査に失敗しました",
			slog.String("dir", j.mediaDir),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("メディアディレクトリの走査に失敗: %w", err)
	}

	removed := 0
	cutoff := time.Now().Add(-j.GracePeriod)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := live[entry.Name()]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		fullPath := filepath.Join(j.mediaDir, entry.Name())
		if err := os.Remove(fullPath); err != nil {
			j.logger.Warn("孤児ファイルの削除に失敗しました",
				slog.String("path", fullPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if j.metrics != nil {
		j.metrics.RecordOrphanFilesRemoved(removed)
	}

	duration := time.Since(start)
	j.logger.Info("孤児ファイル回収ジョブが完了しました",
		slog.Int("removed_count", removed),
		slog.Int("live_count", len(livePaths)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
