package domain

// イベントのステータス
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// 参加者の出欠ステータス
const (
	ResponseAccepted    = "accepted"
	ResponseDeclined    = "declined"
	ResponseTentative   = "tentative"
	ResponseNeedsAction = "needsAction"
)

// EntryPointTypeVideo ビデオ会議のエントリーポイント種別
const EntryPointTypeVideo = "video"

// EventDateTime 開始・終了日時（Date は終日イベント、DateTime は時刻指定イベント）
type EventDateTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee イベントの参加者
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus"`
	Optional       bool   `json:"optional,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

// Person 主催者・作成者
type Person struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// EntryPoint 会議への参加手段
type EntryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri,omitempty"`
}

// ConferenceData 会議情報
type ConferenceData struct {
	EntryPoints []EntryPoint `json:"entryPoints,omitempty"`
}

// CalendarEvent カレンダーイベントのドメインエンティティ
type CalendarEvent struct {
	ID             string          `json:"id"`
	Summary        string          `json:"summary,omitempty"`
	Status         string          `json:"status"`
	Start          *EventDateTime  `json:"start,omitempty"`
	End            *EventDateTime  `json:"end,omitempty"`
	Attendees      []Attendee      `json:"attendees,omitempty"`
	Organizer      *Person         `json:"organizer,omitempty"`
	Creator        *Person         `json:"creator,omitempty"`
	Location       string          `json:"location,omitempty"`
	ConferenceData *ConferenceData `json:"conferenceData,omitempty"`
	CalendarID     string          `json:"calendarId"`
}

// HasVideoEntryPoint ビデオ会議のエントリーポイントを持つか
func (e CalendarEvent) HasVideoEntryPoint() bool {
	if e.ConferenceData == nil {
		return false
	}
	for _, ep := range e.ConferenceData.EntryPoints {
		if ep.EntryPointType == EntryPointTypeVideo {
			return true
		}
	}
	return false
}

// Calendar カレンダーのメタデータ
type Calendar struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}
