package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/kpi"
)

// ComputeInput スナップショット計算の条件
type ComputeInput struct {
	PeriodStart             time.Time
	PeriodEnd               time.Time
	IncludeCompanyCalendars bool
}

// KPICalculator イベント一覧からKPIスナップショットを計算する（kpi.EventAggregator が実装）
type KPICalculator interface {
	ComputeKPIs(events []domain.CalendarEvent, calendars []domain.Calendar, in kpi.ComputeInput) kpi.ComputeResult
}

// CalendarKPIUseCase カレンダーKPIの計算と保存を行うユースケース
type CalendarKPIUseCase struct {
	calendarRepo CalendarRepository
	store        SnapshotStore
	aggregator   KPICalculator
	calendarIDs  []string
	logger       zerolog.Logger
	clock        func() time.Time
	newID        func() string
}

// NewCalendarKPIUseCase ユースケースを生成（calendarIDsが空なら全カレンダーが対象）
func NewCalendarKPIUseCase(calendarRepo CalendarRepository, store SnapshotStore, aggregator KPICalculator, calendarIDs []string, logger zerolog.Logger) *CalendarKPIUseCase {
	return &CalendarKPIUseCase{
		calendarRepo: calendarRepo,
		store:        store,
		aggregator:   aggregator,
		calendarIDs:  calendarIDs,
		logger:       logger.With().Str("usecase", "calendar_kpi").Logger(),
		clock:        time.Now,
		newID:        uuid.NewString,
	}
}

// Compute 期間内のイベントを取得してKPIを計算し、新しいスナップショットとして保存する
func (uc *CalendarKPIUseCase) Compute(ctx context.Context, in ComputeInput) (*domain.CalendarKPISnapshot, error) {
	if err := validateRange(in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}

	// カレンダー名は内訳の表示用。取得できなくても集計は続ける
	calendars, listErr := uc.calendarRepo.ListCalendars(ctx)

	events, err := uc.calendarRepo.ListEvents(ctx, uc.calendarIDs, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		uc.logger.Error().Err(err).Msg("イベントの取得に失敗しました")
		return nil, err
	}

	if listErr != nil {
		uc.logger.Warn().Err(listErr).Msg("カレンダー一覧の取得に失敗したためIDで集計します")
		calendars = calendarsFromEvents(events)
	}

	result := uc.aggregator.ComputeKPIs(events, calendars, kpi.ComputeInput{
		PeriodStart:             in.PeriodStart,
		PeriodEnd:               in.PeriodEnd,
		IncludeCompanyCalendars: in.IncludeCompanyCalendars,
		Now:                     uc.clock(),
	})
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrKPIComputationFailed, result.Error)
	}

	snapshot := result.KPIData
	snapshot.ID = uc.newID()

	if err := uc.store.Create(ctx, snapshot); err != nil {
		uc.logger.Error().Err(err).Str("snapshot_id", snapshot.ID).Msg("スナップショットの保存に失敗しました")
		return nil, err
	}

	uc.logger.Info().
		Str("snapshot_id", snapshot.ID).
		Int("events_processed", result.EventsProcessed).
		Int("total_events", snapshot.TotalEvents).
		Int64("processing_time_ms", result.ProcessingTimeMs).
		Msg("KPIスナップショットを作成しました")

	return snapshot, nil
}

// Latest 最新のスナップショットを取得（存在しない場合は domain.ErrSnapshotNotFound）
func (uc *CalendarKPIUseCase) Latest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error) {
	return uc.store.FindLatest(ctx, includeCompany)
}

// History 新しい順にスナップショットを取得
func (uc *CalendarKPIUseCase) History(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error) {
	return uc.store.FindHistory(ctx, limit)
}

// Prune 指定日数より古いスナップショットを削除
func (uc *CalendarKPIUseCase) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, ErrInvalidRetention
	}
	return uc.store.DeleteOlderThan(ctx, olderThanDays, uc.clock())
}

// calendarsFromEvents イベントに含まれるカレンダーIDを名前代わりにした一覧を作る
func calendarsFromEvents(events []domain.CalendarEvent) []domain.Calendar {
	seen := make(map[string]bool)
	var calendars []domain.Calendar
	for _, e := range events {
		if e.CalendarID == "" || seen[e.CalendarID] {
			continue
		}
		seen[e.CalendarID] = true
		calendars = append(calendars, domain.Calendar{ID: e.CalendarID, Summary: e.CalendarID})
	}
	return calendars
}
