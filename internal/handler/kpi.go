// Package handler KPI集計のHTTPエンドポイント
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/usecase"
)

const dateLayout = "2006-01-02"

// CalendarKPIService スナップショットの計算・参照・削除
type CalendarKPIService interface {
	Compute(ctx context.Context, in usecase.ComputeInput) (*domain.CalendarKPISnapshot, error)
	Latest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error)
	History(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error)
	Prune(ctx context.Context, olderThanDays int) (int64, error)
}

// ParticipantKPIService 参加者別KPIの計算
type ParticipantKPIService interface {
	Execute(ctx context.Context, in usecase.ParticipantInput) (*usecase.ParticipantResult, error)
}

// KPIHandler KPIエンドポイントのハンドラー
type KPIHandler struct {
	calendar    CalendarKPIService
	participant ParticipantKPIService
	location    *time.Location
	logger      zerolog.Logger
}

// NewKPIHandler ハンドラーを作成（日付のみの指定は location で解釈する）
func NewKPIHandler(calendar CalendarKPIService, participant ParticipantKPIService, location *time.Location, logger zerolog.Logger) *KPIHandler {
	if location == nil {
		location = time.UTC
	}
	return &KPIHandler{
		calendar:    calendar,
		participant: participant,
		location:    location,
		logger:      logger.With().Str("component", "kpi_handler").Logger(),
	}
}

// Register ルーティングを登録
func (h *KPIHandler) Register(r fiber.Router) {
	r.Post("/kpi/calendar", h.ComputeCalendarKPI)
	r.Get("/kpi/calendar", h.GetLatestCalendarKPI)
	r.Get("/kpi/calendar/history", h.GetCalendarKPIHistory)
	r.Delete("/kpi/calendar", h.PruneCalendarKPI)
	r.Post("/kpi/participants", h.ComputeParticipantKPI)
}

// ComputeCalendarKPI 期間を指定してスナップショットを計算・保存
// POST /kpi/calendar?periodStart=...&periodEnd=...&includeCompany=true
func (h *KPIHandler) ComputeCalendarKPI(c *fiber.Ctx) error {
	start, end, err := h.parsePeriod(c.Query("periodStart"), c.Query("periodEnd"))
	if err != nil {
		return badRequest(c, "invalid_period", err)
	}
	includeCompany, err := parseBoolQuery(c, "includeCompany")
	if err != nil {
		return badRequest(c, "invalid_query", err)
	}

	snapshot, err := h.calendar.Compute(c.UserContext(), usecase.ComputeInput{
		PeriodStart:             start,
		PeriodEnd:               end,
		IncludeCompanyCalendars: includeCompany,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(snapshot)
}

// GetLatestCalendarKPI 最新のスナップショットを取得
// GET /kpi/calendar?includeCompany=true
func (h *KPIHandler) GetLatestCalendarKPI(c *fiber.Ctx) error {
	includeCompany, err := parseBoolQuery(c, "includeCompany")
	if err != nil {
		return badRequest(c, "invalid_query", err)
	}

	snapshot, err := h.calendar.Latest(c.UserContext(), includeCompany)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(snapshot)
}

// GetCalendarKPIHistory スナップショット履歴を取得
// GET /kpi/calendar/history?limit=10
func (h *KPIHandler) GetCalendarKPIHistory(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(c, "invalid_query", fmt.Errorf("limit must be a positive integer"))
		}
		limit = v
	}

	snapshots, err := h.calendar.History(c.UserContext(), limit)
	if err != nil {
		return h.writeError(c, err)
	}
	if snapshots == nil {
		snapshots = []*domain.CalendarKPISnapshot{}
	}
	return c.Status(http.StatusOK).JSON(HistoryResponse{Snapshots: snapshots})
}

// PruneCalendarKPI 指定日数より古いスナップショットを削除
// DELETE /kpi/calendar?olderThanDays=90
func (h *KPIHandler) PruneCalendarKPI(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("olderThanDays"))
	if err != nil {
		return badRequest(c, "invalid_query", fmt.Errorf("olderThanDays is required"))
	}

	deleted, err := h.calendar.Prune(c.UserContext(), days)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(PruneResponse{Deleted: deleted})
}

// ComputeParticipantKPI 参加者ごとのKPIを計算
// POST /kpi/participants
func (h *KPIHandler) ComputeParticipantKPI(c *fiber.Ctx) error {
	var req ParticipantKPIRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_json", err)
	}

	start, end, err := h.parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return badRequest(c, "invalid_period", err)
	}

	result, err := h.participant.Execute(c.UserContext(), usecase.ParticipantInput{
		Emails:      req.Emails,
		PeriodStart: start,
		PeriodEnd:   end,
		CalendarIDs: req.CalendarIDs,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// parsePeriod 期間の開始・終了を解析（日付のみの終了はその日の終わりまで含める）
func (h *KPIHandler) parsePeriod(startRaw, endRaw string) (time.Time, time.Time, error) {
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("periodStart and periodEnd are required")
	}

	start, _, err := parseTimestamp(startRaw, h.location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid periodStart: %w", err)
	}
	end, dateOnly, err := parseTimestamp(endRaw, h.location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid periodEnd: %w", err)
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return start, end, nil
}

// parseTimestamp RFC3339 または YYYY-MM-DD を解析
func parseTimestamp(raw string, loc *time.Location) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", raw)
	}
	return t, true, nil
}

func parseBoolQuery(c *fiber.Ctx, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

func badRequest(c *fiber.Ctx, code string, err error) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

// writeError ユースケースのエラーをHTTPステータスに変換
func (h *KPIHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidTimeRange),
		errors.Is(err, usecase.ErrNoParticipants),
		errors.Is(err, usecase.ErrInvalidRetention):
		return badRequest(c, "invalid_request", err)
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("リクエストの処理に失敗しました")
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}
}
