package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// 入力不正などハンドラーで400として扱うエラー
var (
	ErrInvalidTimeRange     = errors.New("invalid time range")
	ErrNoParticipants       = errors.New("no participant emails")
	ErrInvalidRetention     = errors.New("retention days must be positive")
	ErrKPIComputationFailed = errors.New("kpi computation failed")
)

// CalendarRepository カレンダーからイベントとメタデータを取得するポート
type CalendarRepository interface {
	ListEvents(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) ([]domain.CalendarEvent, error)
	ListCalendars(ctx context.Context) ([]domain.Calendar, error)
}

// SnapshotStore KPIスナップショットを永続化するポート
type SnapshotStore interface {
	Create(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error
	FindLatest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error)
	FindHistory(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error)
	DeleteOlderThan(ctx context.Context, days int, now time.Time) (int64, error)
}

// Notifier KPIサマリーを通知するポート
type Notifier interface {
	SendKPISummary(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return ErrInvalidTimeRange
	}
	return nil
}
