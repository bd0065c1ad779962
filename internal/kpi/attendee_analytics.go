package kpi

import (
	"sort"
	"strings"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

const (
	mostEngagedLimit      = 10
	mostAttendedEventsCap = 5
)

type attendeeAccumulator struct {
	email       string
	displayName string
	invitations int
	accepted    int
	declined    int
	tentative   int
	needsAction int
}

func (a *attendeeAccumulator) acceptanceRate() float64 {
	if a.invitations == 0 {
		return 0
	}
	return round2(float64(a.accepted) / float64(a.invitations) * 100)
}

type domainAccumulator struct {
	domain    string
	count     int
	attendees map[string]struct{}
}

// CalculateAttendeeAnalytics 参加者ごと・ドメインごとの集計から詳細分析を作成
func CalculateAttendeeAnalytics(events []domain.CalendarEvent) domain.AttendeeAnalytics {
	var (
		attendees     []*attendeeAccumulator
		attendeeIndex = make(map[string]*attendeeAccumulator)
		domains       = make(map[string]*domainAccumulator)
	)

	for _, e := range events {
		for _, at := range e.Attendees {
			email := normalizeEmail(at.Email)
			if email == "" {
				continue
			}

			acc, ok := attendeeIndex[email]
			if !ok {
				acc = &attendeeAccumulator{email: email}
				attendeeIndex[email] = acc
				attendees = append(attendees, acc)
			}
			if acc.displayName == "" && at.DisplayName != "" {
				acc.displayName = at.DisplayName
			}
			acc.invitations++

			switch normalizeResponse(at.ResponseStatus) {
			case domain.ResponseAccepted:
				acc.accepted++
			case domain.ResponseDeclined:
				acc.declined++
			case domain.ResponseTentative:
				acc.tentative++
			case domain.ResponseNeedsAction:
				acc.needsAction++
			}

			if d := emailDomain(email); d != "" {
				da, ok := domains[d]
				if !ok {
					da = &domainAccumulator{domain: d, attendees: make(map[string]struct{})}
					domains[d] = da
				}
				da.count++
				da.attendees[email] = struct{}{}
			}
		}
	}

	return domain.AttendeeAnalytics{
		MostEngagedAttendees: mostEngaged(attendees),
		AttendeeFrequency:    attendeeFrequency(attendees),
		DomainBreakdown:      domainBreakdown(domains),
		ResponseTimeStats:    responseTimeStats(attendees),
		InvitationStats:      invitationStats(events),
	}
}

func mostEngaged(attendees []*attendeeAccumulator) []domain.EngagedAttendee {
	ranked := make([]*attendeeAccumulator, len(attendees))
	copy(ranked, attendees)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].invitations != ranked[j].invitations {
			return ranked[i].invitations > ranked[j].invitations
		}
		return ranked[i].acceptanceRate() > ranked[j].acceptanceRate()
	})
	if len(ranked) > mostEngagedLimit {
		ranked = ranked[:mostEngagedLimit]
	}

	out := make([]domain.EngagedAttendee, 0, len(ranked))
	for _, a := range ranked {
		out = append(out, domain.EngagedAttendee{
			Email:          a.email,
			DisplayName:    a.displayName,
			EventsCount:    a.invitations,
			AcceptedCount:  a.accepted,
			DeclinedCount:  a.declined,
			TentativeCount: a.tentative,
			AcceptanceRate: a.acceptanceRate(),
		})
	}
	return out
}

func attendeeFrequency(attendees []*attendeeAccumulator) domain.AttendeeFrequency {
	var f domain.AttendeeFrequency
	for _, a := range attendees {
		switch {
		case a.invitations == 1:
			f.Single++
		case a.invitations <= 3:
			f.Occasional++
		case a.invitations <= 5:
			f.Regular++
		default:
			f.Frequent++
		}
	}
	return f
}

func domainBreakdown(domains map[string]*domainAccumulator) []domain.DomainStats {
	out := make([]domain.DomainStats, 0, len(domains))
	for _, d := range domains {
		out = append(out, domain.DomainStats{
			Domain:          d.domain,
			Count:           d.count,
			UniqueAttendees: len(d.attendees),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// responseTimeStats 招待のうち回答済みの割合で分類（回答時刻のデータがないため近似）
func responseTimeStats(attendees []*attendeeAccumulator) domain.ResponseTimeStats {
	var stats domain.ResponseTimeStats
	for _, a := range attendees {
		ratio := float64(a.invitations-a.needsAction) / float64(a.invitations)
		switch {
		case ratio > 0.8:
			stats.QuickResponders++
		case ratio > 0.5:
			stats.NormalResponders++
		default:
			stats.SlowResponders++
		}
	}
	return stats
}

func invitationStats(events []domain.CalendarEvent) domain.InvitationStats {
	var (
		stats      domain.InvitationStats
		withGuests []domain.EventAttendees
	)

	for _, e := range events {
		n := len(e.Attendees)
		stats.TotalInvitationsSent += n
		if n == 0 {
			continue
		}
		if len(withGuests) == 0 || n > stats.MaxAttendeesInEvent {
			stats.MaxAttendeesInEvent = n
		}
		if len(withGuests) == 0 || n < stats.MinAttendeesInEvent {
			stats.MinAttendeesInEvent = n
		}
		withGuests = append(withGuests, domain.EventAttendees{
			EventID:       e.ID,
			Summary:       e.Summary,
			AttendeeCount: n,
		})
	}

	if len(withGuests) > 0 {
		stats.AverageAttendeesPerEvent = round2(float64(stats.TotalInvitationsSent) / float64(len(withGuests)))
	}

	sort.SliceStable(withGuests, func(i, j int) bool {
		return withGuests[i].AttendeeCount > withGuests[j].AttendeeCount
	})
	if len(withGuests) > mostAttendedEventsCap {
		withGuests = withGuests[:mostAttendedEventsCap]
	}
	stats.EventsWithMostAttendees = withGuests
	if stats.EventsWithMostAttendees == nil {
		stats.EventsWithMostAttendees = []domain.EventAttendees{}
	}

	return stats
}

func emailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}
