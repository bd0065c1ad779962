package kpi

import (
	"math"
	"time"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

const (
	dateLayout = "2006-01-02"

	// defaultEventDuration 終了時刻がないイベントの想定所要時間
	defaultEventDuration = time.Hour
)

// EventStart イベントの開始時刻を取得（終日イベントは指定日の00:00:00）
func EventStart(e domain.CalendarEvent, loc *time.Location) (time.Time, bool) {
	return parseStart(e.Start, locationOrUTC(loc))
}

// IsAllDay 終日イベントかどうか
func IsAllDay(dt *domain.EventDateTime) bool {
	return dt != nil && dt.DateTime == "" && dt.Date != ""
}

// DurationMinutes イベントの所要時間（分）を計算。計算できない場合は0
func DurationMinutes(e domain.CalendarEvent, loc *time.Location) int {
	loc = locationOrUTC(loc)

	start, ok := parseStart(e.Start, loc)
	if !ok {
		return 0
	}

	// 終了時刻がまったくない場合は1時間のイベントとみなす
	if !hasValue(e.End) {
		return int(defaultEventDuration / time.Minute)
	}

	end, ok := parseEnd(e.End, loc)
	if !ok {
		return 0
	}

	minutes := math.Round(float64(end.Sub(start).Milliseconds()) / 60000)
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}

// EventEnd 完了判定に使う実効終了時刻を取得
// 終了時刻がない（または解析できない）場合は開始日の23:59:59.999とし、開始時刻より前にはならない
func EventEnd(e domain.CalendarEvent, loc *time.Location) (time.Time, bool) {
	loc = locationOrUTC(loc)

	start, startOK := parseStart(e.Start, loc)

	end, ok := parseEnd(e.End, loc)
	if !ok {
		if !startOK {
			return time.Time{}, false
		}
		return endOfDay(start, loc), true
	}

	if startOK && end.Before(start) {
		return start, true
	}
	return end, true
}

// IsCompleted 実効終了時刻が now より前なら完了済み
func IsCompleted(e domain.CalendarEvent, now time.Time, loc *time.Location) bool {
	end, ok := EventEnd(e, loc)
	if !ok {
		return false
	}
	return end.Before(now)
}

func parseStart(dt *domain.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func parseEnd(dt *domain.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return endOfDay(t, loc), true
	}
	return time.Time{}, false
}

func hasValue(dt *domain.EventDateTime) bool {
	return dt != nil && (dt.Date != "" || dt.DateTime != "")
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// round2 小数点以下2桁に丸める
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
