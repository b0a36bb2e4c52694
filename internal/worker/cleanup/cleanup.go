// Package cleanup は期限切れセッションとOAuth stateの定期削除ジョブを提供する。
// 期限切れの行は参照時にも遅延削除されるが、参照されない行はこのジョブで掃除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/grailtracker/internal/metrics"
)

// DefaultRunTimeout は1回の削除処理のタイムアウト。
const DefaultRunTimeout = 30 * time.Second

// Sweeper は期限切れ行を削除し、削除件数を返すストアのインターフェース。
// auth.SessionStoreとauth.StateStoreが満たす。
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Target は削除対象の名前とストアの組。
type Target struct {
	Name    string
	Sweeper Sweeper
}

// Job は期限切れ行の削除ジョブ。
// 失敗はログに記録するのみで、呼び出し元のリクエストやプロセスを止めない。
type Job struct {
	targets    []Target
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	RunTimeout time.Duration
}

// NewJob は新しいJobを生成する。mcがnilの場合はメトリクスを記録しない。
func NewJob(targets []Target, logger *slog.Logger, mc metrics.MetricsCollector) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Job{
		targets:    targets,
		logger:     logger,
		metrics:    mc,
		RunTimeout: DefaultRunTimeout,
	}
}

// Run は全ターゲットの期限切れ行を削除する。
// 1つのターゲットが失敗しても残りは処理し、失敗をまとめて返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.RunTimeout)
	defer cancel()

	var errs []error
	for _, t := range j.targets {
		start := time.Now()
		deleted, err := t.Sweeper.SweepExpired(ctx)
		if err != nil {
			j.logger.Error("期限切れ行の削除に失敗しました",
				slog.String("target", t.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}

		j.metrics.RecordSweep(t.Name, deleted)
		j.logger.Info("期限切れ行の削除が完了しました",
			slog.String("target", t.Name),
			slog.Int64("deleted_count", deleted),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return errors.Join(errs...)
}

// RunDetached は呼び出し元のコンテキストから切り離してRunをバックグラウンド実行する。
// ヘルスチェックなどリクエスト処理中のベストエフォートな掃除に使う。
func (j *Job) RunDetached() {
	go func() {
		_ = j.Run(context.Background())
	}()
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
// 起動直後にも1回実行する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("cleanup job started", slog.Duration("interval", interval))

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup job stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
