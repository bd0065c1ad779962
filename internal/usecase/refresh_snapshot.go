package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// SnapshotService スナップショットの計算と削除
type SnapshotService interface {
	Compute(ctx context.Context, in ComputeInput) (*domain.CalendarKPISnapshot, error)
	Prune(ctx context.Context, olderThanDays int) (int64, error)
}

// RefreshOptions 定期実行時の集計範囲と保持期間
type RefreshOptions struct {
	LookbackDays            int
	LookaheadDays           int
	RetentionDays           int
	IncludeCompanyCalendars bool
}

// RefreshResult 定期実行の結果
type RefreshResult struct {
	Snapshot *domain.CalendarKPISnapshot
	Deleted  int64
	Notified bool
}

// RefreshSnapshotUseCase スナップショットを定期的に再計算するユースケース
type RefreshSnapshotUseCase struct {
	service  SnapshotService
	notifier Notifier
	opts     RefreshOptions
	logger   zerolog.Logger
	clock    func() time.Time
}

// NewRefreshSnapshotUseCase ユースケースを生成（notifierがnilの場合は通知しない）
func NewRefreshSnapshotUseCase(service SnapshotService, notifier Notifier, opts RefreshOptions, logger zerolog.Logger) *RefreshSnapshotUseCase {
	return &RefreshSnapshotUseCase{
		service:  service,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("usecase", "refresh_snapshot").Logger(),
		clock:    time.Now,
	}
}

// Execute [now-lookback, now+lookahead] のスナップショットを作成し、古いものを削除して通知する
func (uc *RefreshSnapshotUseCase) Execute(ctx context.Context) (*RefreshResult, error) {
	now := uc.clock()

	snapshot, err := uc.service.Compute(ctx, ComputeInput{
		PeriodStart:             now.AddDate(0, 0, -uc.opts.LookbackDays),
		PeriodEnd:               now.AddDate(0, 0, uc.opts.LookaheadDays),
		IncludeCompanyCalendars: uc.opts.IncludeCompanyCalendars,
	})
	if err != nil {
		return nil, fmt.Errorf("スナップショットの作成に失敗しました: %w", err)
	}
	result := &RefreshResult{Snapshot: snapshot}

	deleted, err := uc.service.Prune(ctx, uc.opts.RetentionDays)
	if err != nil {
		return result, fmt.Errorf("古いスナップショットの削除に失敗しました: %w", err)
	}
	result.Deleted = deleted

	if uc.notifier == nil {
		return result, nil
	}
	if err := uc.notifier.SendKPISummary(ctx, snapshot); err != nil {
		uc.logger.Error().Err(err).Str("snapshot_id", snapshot.ID).Msg("KPIサマリーの通知に失敗しました")
		return result, fmt.Errorf("KPIサマリーの通知に失敗しました: %w", err)
	}
	result.Notified = true

	return result, nil
}
