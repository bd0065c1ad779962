package kpi

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// ParticipantKPIs リクエストされた順序の参加者KPI
type ParticipantKPIs []domain.ParticipantKPI

// ByEmail メールアドレスで参加者KPIを検索（大文字小文字は区別しない）
func (p ParticipantKPIs) ByEmail(email string) (domain.ParticipantKPI, bool) {
	key := normalizeEmail(email)
	for _, k := range p {
		if normalizeEmail(k.Email) == key {
			return k, true
		}
	}
	return domain.ParticipantKPI{}, false
}

// ParticipantAggregator 参加者ごとのKPIを集計する
type ParticipantAggregator struct {
	logger   zerolog.Logger
	location *time.Location
}

// NewParticipantAggregator 参加者KPI集計器を作成
func NewParticipantAggregator(logger zerolog.Logger, location *time.Location) *ParticipantAggregator {
	return &ParticipantAggregator{
		logger:   logger,
		location: locationOrUTC(location),
	}
}

// ComputeParticipantKPIs 指定された参加者のKPIを計算
// イベントに一度も登場しない参加者もゼロ値で結果に含める。キャンセル済みイベントは対象外
func (a *ParticipantAggregator) ComputeParticipantKPIs(events []domain.CalendarEvent, participantEmails []string, now time.Time) ParticipantKPIs {
	kpis := make(ParticipantKPIs, 0, len(participantEmails))
	index := make(map[string]int, len(participantEmails))
	for _, email := range participantEmails {
		key := normalizeEmail(email)
		if key == "" {
			continue
		}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = len(kpis)
		kpis = append(kpis, domain.ParticipantKPI{Email: email})
	}

	for _, e := range events {
		if e.Status == domain.EventStatusCancelled {
			continue
		}

		if _, ok := EventStart(e, a.location); !ok {
			a.logger.Debug().Str("event_id", e.ID).Msg("開始時刻を解析できないため所要時間0として扱います")
		}
		completed := IsCompleted(e, now, a.location)
		duration := DurationMinutes(e, a.location)

		for _, at := range e.Attendees {
			i, ok := index[normalizeEmail(at.Email)]
			if !ok {
				continue
			}
			k := &kpis[i]

			k.TotalEvents++
			k.TotalDurationMinutes += duration

			if k.DisplayName == "" && at.DisplayName != "" {
				k.DisplayName = at.DisplayName
			}

			// tentative は未回答と同じ扱い
			switch normalizeResponse(at.ResponseStatus) {
			case domain.ResponseAccepted:
				k.AcceptedEvents++
				k.AcceptedDurationMinutes += duration
			case domain.ResponseDeclined:
				k.DeclinedEvents++
				k.DeclinedDurationMinutes += duration
			default:
				k.NeedsActionEvents++
				k.NeedsActionDurationMinutes += duration
			}

			if completed {
				k.CompletedEvents++
				k.CompletedDurationMinutes += duration
			} else {
				k.UpcomingEvents++
				k.UpcomingDurationMinutes += duration
			}
		}
	}

	for i := range kpis {
		k := &kpis[i]
		if k.TotalEvents == 0 {
			continue
		}
		k.ParticipationRate = percentage(k.AcceptedEvents, k.TotalEvents)
		k.ResponseRate = percentage(k.AcceptedEvents+k.DeclinedEvents, k.TotalEvents)
	}

	return kpis
}

// AggregatedStats 計算済みの参加者KPIからサマリーを作成
// 平均は参加者単位の単純平均。最多・最少が同数の場合は先に現れた参加者を採用
func AggregatedStats(kpis ParticipantKPIs) domain.ParticipantAggregateStats {
	stats := domain.ParticipantAggregateStats{TotalParticipants: len(kpis)}
	if len(kpis) == 0 {
		return stats
	}

	var participationSum, responseSum float64
	most, least := 0, 0
	for i, k := range kpis {
		participationSum += float64(k.ParticipationRate)
		responseSum += float64(k.ResponseRate)
		stats.TotalEvents += k.TotalEvents

		if k.TotalEvents > kpis[most].TotalEvents {
			most = i
		}
		if k.TotalEvents < kpis[least].TotalEvents {
			least = i
		}
	}

	n := float64(len(kpis))
	stats.AverageParticipationRate = round2(participationSum / n)
	stats.AverageResponseRate = round2(responseSum / n)

	mostActive := kpis[most]
	leastActive := kpis[least]
	stats.MostActiveParticipant = &mostActive
	stats.LeastActiveParticipant = &leastActive

	return stats
}

func percentage(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}
