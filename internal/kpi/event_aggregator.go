package kpi

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// outlierDurationMinutes 平均所要時間の計算から除外する下限（24時間）
const outlierDurationMinutes = 24 * 60

var weekdayKeys = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// ComputeInput KPI計算の対象期間と条件
type ComputeInput struct {
	PeriodStart             time.Time
	PeriodEnd               time.Time
	IncludeCompanyCalendars bool
	// Now 完了・予定の判定基準時刻（ゼロ値の場合は現在時刻）
	Now time.Time
}

// ComputeResult KPI計算の結果
type ComputeResult struct {
	Success          bool                        `json:"success"`
	KPIData          *domain.CalendarKPISnapshot `json:"kpiData,omitempty"`
	ProcessingTimeMs int64                       `json:"processingTimeMs"`
	EventsProcessed  int                         `json:"eventsProcessed"`
	Error            string                      `json:"error,omitempty"`
}

// EventAggregator カレンダー全体のKPIを集計する
type EventAggregator struct {
	logger        zerolog.Logger
	location      *time.Location
	companyDomain string
	clock         func() time.Time
}

// NewEventAggregator 集計器を作成
// companyDomain で終わるIDのカレンダーは、IncludeCompanyCalendars が false の場合に内訳から除外する
func NewEventAggregator(logger zerolog.Logger, location *time.Location, companyDomain string) *EventAggregator {
	return &EventAggregator{
		logger:        logger,
		location:      locationOrUTC(location),
		companyDomain: companyDomain,
		clock:         time.Now,
	}
}

// ComputeKPIs 期間内のイベントからKPIスナップショットを作成
// 個々のイベントの不備ではエラーにならない。想定外のpanicのみ Success=false として返す
func (a *EventAggregator) ComputeKPIs(events []domain.CalendarEvent, calendars []domain.Calendar, in ComputeInput) (result ComputeResult) {
	var started time.Time
	defer func() {
		if r := recover(); r != nil {
			var elapsed int64
			if !started.IsZero() {
				elapsed = time.Since(started).Milliseconds()
			}
			a.logger.Error().
				Interface("panic", r).
				Int("events", len(events)).
				Msg("KPIの計算に失敗しました")
			result = ComputeResult{
				Success:          false,
				ProcessingTimeMs: elapsed,
				EventsProcessed:  0,
				Error:            fmt.Sprint(r),
			}
		}
	}()
	started = time.Now()

	now := in.Now
	if now.IsZero() {
		now = a.clock()
	}

	snapshot := a.buildSnapshot(events, calendars, in, now)

	a.logger.Debug().
		Int("events", len(events)).
		Int("filtered", snapshot.TotalEvents).
		Time("period_start", in.PeriodStart).
		Time("period_end", in.PeriodEnd).
		Msg("KPIを計算しました")

	return ComputeResult{
		Success:          true,
		KPIData:          snapshot,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		EventsProcessed:  len(events),
	}
}

func (a *EventAggregator) buildSnapshot(events []domain.CalendarEvent, calendars []domain.Calendar, in ComputeInput, now time.Time) *domain.CalendarKPISnapshot {
	filtered := a.filterByPeriod(events, in.PeriodStart, in.PeriodEnd)

	s := &domain.CalendarKPISnapshot{
		PeriodStart:             in.PeriodStart,
		PeriodEnd:               in.PeriodEnd,
		IncludeCompanyCalendars: in.IncludeCompanyCalendars,
		CalculatedAt:            now,
		LastUpdatedAt:           now,
		TotalEvents:             len(filtered),
	}

	// 基本件数
	for _, e := range filtered {
		if start, ok := EventStart(e, a.location); ok && start.After(now) {
			s.UpcomingEvents++
		}
		if IsCompleted(e, now, a.location) {
			s.CompletedEvents++
		}
		if e.Status == domain.EventStatusCancelled {
			s.CancelledEvents++
		}
	}

	a.applyAttendeeStats(s, filtered)
	a.applyDurationStats(s, filtered)
	s.CalendarBreakdown = a.calendarBreakdown(filtered, calendars, in.IncludeCompanyCalendars)
	s.MeetingTypeStats = meetingTypeStats(filtered)
	s.DayOfWeekStats = a.dayOfWeekStats(filtered)
	s.HourlyStats = a.hourlyStats(filtered)
	s.AttendeeAnalytics = CalculateAttendeeAnalytics(filtered)

	return s
}

// filterByPeriod 開始時刻が [start, end] に含まれるイベントを抽出（開始時刻を解析できないものは除外）
func (a *EventAggregator) filterByPeriod(events []domain.CalendarEvent, start, end time.Time) []domain.CalendarEvent {
	filtered := make([]domain.CalendarEvent, 0, len(events))
	for _, e := range events {
		t, ok := EventStart(e, a.location)
		if !ok {
			a.logger.Debug().Str("event_id", e.ID).Msg("開始時刻を解析できないイベントをスキップしました")
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (a *EventAggregator) applyAttendeeStats(s *domain.CalendarKPISnapshot, events []domain.CalendarEvent) {
	unique := make(map[string]struct{})
	invitations := 0
	responded := 0

	for _, e := range events {
		for _, at := range e.Attendees {
			if email := normalizeEmail(at.Email); email != "" {
				unique[email] = struct{}{}
			}
			invitations++

			status := normalizeResponse(at.ResponseStatus)
			if status != domain.ResponseNeedsAction {
				responded++
			}

			switch status {
			case domain.ResponseAccepted:
				s.EventStatusStats.Accepted++
			case domain.ResponseDeclined:
				s.EventStatusStats.Declined++
			case domain.ResponseTentative:
				s.EventStatusStats.Tentative++
			case domain.ResponseNeedsAction:
				s.EventStatusStats.NeedsAction++
			}
		}
	}

	s.TotalUniqueAttendees = len(unique)
	if s.TotalEvents > 0 {
		s.AverageAttendeesPerEvent = round2(float64(invitations) / float64(s.TotalEvents))
	}

	s.ResponseRateStats = domain.ResponseRateStats{
		TotalInvited: invitations,
		Responded:    responded,
	}
	if invitations > 0 {
		s.ResponseRateStats.ResponseRate = round2(float64(responded) / float64(invitations) * 100)
	}
}

func (a *EventAggregator) applyDurationStats(s *domain.CalendarKPISnapshot, events []domain.CalendarEvent) {
	total := 0
	valid := 0
	for _, e := range events {
		d := DurationMinutes(e, a.location)
		if d <= 0 || d >= outlierDurationMinutes {
			continue
		}
		total += d
		valid++
	}

	s.TotalEventHours = round2(float64(total) / 60)
	if valid > 0 {
		s.AverageEventDuration = round2(float64(total) / float64(valid))
	}
}

func (a *EventAggregator) calendarBreakdown(events []domain.CalendarEvent, calendars []domain.Calendar, includeCompany bool) map[string]domain.CalendarStats {
	breakdown := make(map[string]domain.CalendarStats)
	for _, c := range calendars {
		if !includeCompany && a.isCompanyCalendar(c.ID) {
			continue
		}

		stats := domain.CalendarStats{Name: c.Summary}
		for _, e := range events {
			if e.CalendarID != c.ID {
				continue
			}
			stats.EventCount++
			stats.TotalAttendees += len(e.Attendees)
		}
		if stats.EventCount > 0 {
			stats.AverageAttendeesPerEvent = round2(float64(stats.TotalAttendees) / float64(stats.EventCount))
		}
		breakdown[c.ID] = stats
	}
	return breakdown
}

func (a *EventAggregator) isCompanyCalendar(calendarID string) bool {
	return a.companyDomain != "" && strings.HasSuffix(calendarID, a.companyDomain)
}

// meetingTypeStats 場所があり Meet がないものを対面とする。場所も Meet もないイベントは WithoutMeetLink のみに数える
func meetingTypeStats(events []domain.CalendarEvent) domain.MeetingTypeStats {
	var stats domain.MeetingTypeStats
	for _, e := range events {
		if e.HasVideoEntryPoint() {
			stats.WithMeetLink++
			continue
		}
		stats.WithoutMeetLink++
		if e.Location != "" {
			stats.InPerson++
		}
	}
	return stats
}

func (a *EventAggregator) dayOfWeekStats(events []domain.CalendarEvent) map[string]int {
	stats := make(map[string]int, len(weekdayKeys))
	for _, d := range weekdayKeys {
		stats[d.String()] = 0
	}
	for _, e := range events {
		start, ok := EventStart(e, a.location)
		if !ok {
			continue
		}
		stats[start.In(a.location).Weekday().String()]++
	}
	return stats
}

func (a *EventAggregator) hourlyStats(events []domain.CalendarEvent) map[string]int {
	stats := make(map[string]int, 24)
	for h := 0; h < 24; h++ {
		stats[hourKey(h)] = 0
	}
	for _, e := range events {
		if e.Start == nil || e.Start.DateTime == "" {
			continue
		}
		start, ok := EventStart(e, a.location)
		if !ok {
			continue
		}
		stats[hourKey(start.In(a.location).Hour())]++
	}
	return stats
}

func hourKey(h int) string {
	return fmt.Sprintf("%02d", h)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeResponse 未設定の出欠ステータスは未回答として扱う
func normalizeResponse(status string) string {
	if status == "" {
		return domain.ResponseNeedsAction
	}
	return status
}
