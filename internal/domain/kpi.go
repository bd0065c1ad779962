package domain

import (
	"errors"
	"time"
)

// ErrSnapshotNotFound 条件に一致するスナップショットが存在しない
var ErrSnapshotNotFound = errors.New("kpi snapshot not found")

// CalendarKPISnapshot ある期間のカレンダーKPI集計結果（作成後は変更しない）
type CalendarKPISnapshot struct {
	ID                      string    `json:"id"`
	PeriodStart             time.Time `json:"periodStart"`
	PeriodEnd               time.Time `json:"periodEnd"`
	IncludeCompanyCalendars bool      `json:"includeCompanyCalendars"`
	CalculatedAt            time.Time `json:"calculatedAt"`
	LastUpdatedAt           time.Time `json:"lastUpdatedAt"`

	TotalEvents     int `json:"totalEvents"`
	UpcomingEvents  int `json:"upcomingEvents"`
	CompletedEvents int `json:"completedEvents"`
	CancelledEvents int `json:"cancelledEvents"`

	TotalUniqueAttendees     int     `json:"totalUniqueAttendees"`
	AverageAttendeesPerEvent float64 `json:"averageAttendeesPerEvent"`

	TotalEventHours      float64 `json:"totalEventHours"`
	AverageEventDuration float64 `json:"averageEventDuration"`

	CalendarBreakdown map[string]CalendarStats `json:"calendarBreakdown"`
	EventStatusStats  EventStatusStats         `json:"eventStatusStats"`
	MeetingTypeStats  MeetingTypeStats         `json:"meetingTypeStats"`
	DayOfWeekStats    map[string]int           `json:"dayOfWeekStats"`
	HourlyStats       map[string]int           `json:"hourlyStats"`
	ResponseRateStats ResponseRateStats        `json:"responseRateStats"`
	AttendeeAnalytics AttendeeAnalytics        `json:"attendeeAnalytics"`
}

// CalendarStats カレンダー単位の内訳
type CalendarStats struct {
	Name                     string  `json:"name"`
	EventCount               int     `json:"eventCount"`
	TotalAttendees           int     `json:"totalAttendees"`
	AverageAttendeesPerEvent float64 `json:"averageAttendeesPerEvent"`
}

// EventStatusStats 出欠ステータス別の件数
type EventStatusStats struct {
	Accepted    int `json:"accepted"`
	Declined    int `json:"declined"`
	Tentative   int `json:"tentative"`
	NeedsAction int `json:"needsAction"`
}

// MeetingTypeStats 会議形態別の件数（InPerson は WithoutMeetLink の部分集合）
type MeetingTypeStats struct {
	WithMeetLink    int `json:"withMeetLink"`
	WithoutMeetLink int `json:"withoutMeetLink"`
	InPerson        int `json:"inPerson"`
}

// ResponseRateStats 招待に対する回答率
type ResponseRateStats struct {
	TotalInvited int     `json:"totalInvited"`
	Responded    int     `json:"responded"`
	ResponseRate float64 `json:"responseRate"`
}

// AttendeeAnalytics 参加者の詳細分析
type AttendeeAnalytics struct {
	MostEngagedAttendees []EngagedAttendee `json:"mostEngagedAttendees"`
	AttendeeFrequency    AttendeeFrequency `json:"attendeeFrequency"`
	DomainBreakdown      []DomainStats     `json:"domainBreakdown"`
	ResponseTimeStats    ResponseTimeStats `json:"responseTimeStats"`
	InvitationStats      InvitationStats   `json:"invitationStats"`
}

// EngagedAttendee 参加頻度ランキングの1件
type EngagedAttendee struct {
	Email          string  `json:"email"`
	DisplayName    string  `json:"displayName,omitempty"`
	EventsCount    int     `json:"eventsCount"`
	AcceptedCount  int     `json:"acceptedCount"`
	DeclinedCount  int     `json:"declinedCount"`
	TentativeCount int     `json:"tentativeCount"`
	AcceptanceRate float64 `json:"acceptanceRate"`
}

// AttendeeFrequency 出現回数による参加者の分布
type AttendeeFrequency struct {
	Single     int `json:"single"`
	Occasional int `json:"occasional"`
	Regular    int `json:"regular"`
	Frequent   int `json:"frequent"`
}

// DomainStats メールドメイン別の集計
type DomainStats struct {
	Domain          string `json:"domain"`
	Count           int    `json:"count"`
	UniqueAttendees int    `json:"uniqueAttendees"`
}

// ResponseTimeStats 回答割合による参加者の分類（実際の回答時刻ではなく回答率で近似）
type ResponseTimeStats struct {
	QuickResponders  int `json:"quickResponders"`
	NormalResponders int `json:"normalResponders"`
	SlowResponders   int `json:"slowResponders"`
}

// InvitationStats 招待数の統計
type InvitationStats struct {
	TotalInvitationsSent     int              `json:"totalInvitationsSent"`
	AverageAttendeesPerEvent float64          `json:"averageAttendeesPerEvent"`
	MaxAttendeesInEvent      int              `json:"maxAttendeesInEvent"`
	MinAttendeesInEvent      int              `json:"minAttendeesInEvent"`
	EventsWithMostAttendees  []EventAttendees `json:"eventsWithMostAttendees"`
}

// EventAttendees 参加者数の多いイベント
type EventAttendees struct {
	EventID       string `json:"eventId"`
	Summary       string `json:"summary,omitempty"`
	AttendeeCount int    `json:"attendeeCount"`
}

// ParticipantKPI 参加者ごとのKPI
type ParticipantKPI struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`

	TotalEvents       int `json:"totalEvents"`
	AcceptedEvents    int `json:"acceptedEvents"`
	DeclinedEvents    int `json:"declinedEvents"`
	NeedsActionEvents int `json:"needsActionEvents"`
	CompletedEvents   int `json:"completedEvents"`
	UpcomingEvents    int `json:"upcomingEvents"`

	TotalDurationMinutes       int `json:"totalDurationMinutes"`
	AcceptedDurationMinutes    int `json:"acceptedDurationMinutes"`
	DeclinedDurationMinutes    int `json:"declinedDurationMinutes"`
	NeedsActionDurationMinutes int `json:"needsActionDurationMinutes"`
	CompletedDurationMinutes   int `json:"completedDurationMinutes"`
	UpcomingDurationMinutes    int `json:"upcomingDurationMinutes"`

	ParticipationRate int `json:"participationRate"`
	ResponseRate      int `json:"responseRate"`
}

// ParticipantAggregateStats 参加者KPI全体のサマリー
type ParticipantAggregateStats struct {
	TotalParticipants        int             `json:"totalParticipants"`
	AverageParticipationRate float64         `json:"averageParticipationRate"`
	AverageResponseRate      float64         `json:"averageResponseRate"`
	TotalEvents              int             `json:"totalEvents"`
	MostActiveParticipant    *ParticipantKPI `json:"mostActiveParticipant,omitempty"`
	LeastActiveParticipant   *ParticipantKPI `json:"leastActiveParticipant,omitempty"`
}
