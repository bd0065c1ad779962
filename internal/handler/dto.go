package handler

import (
	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// ParticipantKPIRequest 参加者KPI計算のリクエストボディ
type ParticipantKPIRequest struct {
	Emails      []string `json:"emails"`
	PeriodStart string   `json:"periodStart"`
	PeriodEnd   string   `json:"periodEnd"`
	CalendarIDs []string `json:"calendarIds,omitempty"`
}

// HistoryResponse スナップショット履歴のレスポンス
type HistoryResponse struct {
	Snapshots []*domain.CalendarKPISnapshot `json:"snapshots"`
}

// PruneResponse スナップショット削除のレスポンス
type PruneResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
