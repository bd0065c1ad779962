package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// eventsPageSize 1リクエストあたりの取得件数（API上限）
const eventsPageSize = 2500

// EventsProvider Google Calendar APIへのアクセスを抽象化するインターフェース
type EventsProvider interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
}

// googleEventsProvider calendar.Service を使った EventsProvider の実装
type googleEventsProvider struct {
	service *calendar.Service
}

// newGoogleEventsProvider Calendar APIサービスを作成
func newGoogleEventsProvider(ctx context.Context, opts ...option.ClientOption) (*googleEventsProvider, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %w", err)
	}
	return &googleEventsProvider{service: service}, nil
}

// ListEvents 繰り返し予定を展開し、キャンセル済みも含めて全ページ取得
func (p *googleEventsProvider) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := p.service.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		ShowDeleted(true).
		MaxResults(eventsPageSize).
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListCalendars カレンダーリストを全ページ取得
func (p *googleEventsProvider) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	var items []*calendar.CalendarListEntry
	err := p.service.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GoogleCalendarRepository Google Calendar APIからKPI集計用のイベントを取得するリポジトリ
type GoogleCalendarRepository struct {
	provider EventsProvider
	logger   zerolog.Logger
}

// NewGoogleCalendarRepository サービスアカウント認証でGoogle Calendarリポジトリを作成
func NewGoogleCalendarRepository(ctx context.Context, credentialsJSON []byte, logger zerolog.Logger) (*GoogleCalendarRepository, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %w", err)
	}

	provider, err := newGoogleEventsProvider(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}
	return NewGoogleCalendarRepositoryWithProvider(provider, logger), nil
}

// NewGoogleCalendarRepositoryWithProvider 任意の EventsProvider でリポジトリを作成
func NewGoogleCalendarRepositoryWithProvider(provider EventsProvider, logger zerolog.Logger) *GoogleCalendarRepository {
	return &GoogleCalendarRepository{
		provider: provider,
		logger:   logger.With().Str("component", "google_calendar").Logger(),
	}
}

// ListCalendars アクセス可能なカレンダーの一覧を取得
func (r *GoogleCalendarRepository) ListCalendars(ctx context.Context) ([]domain.Calendar, error) {
	entries, err := r.provider.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("カレンダー一覧の取得に失敗しました: %w", err)
	}

	calendars := make([]domain.Calendar, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Id == "" {
			continue
		}
		summary := entry.SummaryOverride
		if summary == "" {
			summary = entry.Summary
		}
		calendars = append(calendars, domain.Calendar{ID: entry.Id, Summary: summary})
	}
	return calendars, nil
}

// ListEvents 指定期間のイベントをカレンダーごとに取得（calendarIDsが空なら全カレンダー）
func (r *GoogleCalendarRepository) ListEvents(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) ([]domain.CalendarEvent, error) {
	if len(calendarIDs) == 0 {
		calendars, err := r.ListCalendars(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range calendars {
			calendarIDs = append(calendarIDs, c.ID)
		}
	}

	timeMinStr := timeMin.Format(time.RFC3339)
	timeMaxStr := timeMax.Format(time.RFC3339)

	var events []domain.CalendarEvent
	for _, calendarID := range calendarIDs {
		items, err := r.provider.ListEvents(ctx, calendarID, timeMinStr, timeMaxStr)
		if err != nil {
			return nil, fmt.Errorf("カレンダーイベントの取得に失敗しました (calendar: %s): %w", calendarID, err)
		}

		for _, item := range items {
			if item == nil {
				continue
			}
			events = append(events, convertToEvent(item, calendarID))
		}
		r.logger.Debug().
			Str("calendar_id", calendarID).
			Int("events", len(items)).
			Msg("カレンダーイベントを取得しました")
	}

	if events == nil {
		events = []domain.CalendarEvent{}
	}
	return events, nil
}

// convertToEvent Google Calendar APIのイベントをドメインエンティティに変換
func convertToEvent(event *calendar.Event, calendarID string) domain.CalendarEvent {
	e := domain.CalendarEvent{
		ID:         event.Id,
		Summary:    event.Summary,
		Status:     event.Status,
		Start:      convertDateTime(event.Start),
		End:        convertDateTime(event.End),
		Location:   event.Location,
		CalendarID: calendarID,
	}

	for _, a := range event.Attendees {
		if a == nil {
			continue
		}
		e.Attendees = append(e.Attendees, domain.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
			Optional:       a.Optional,
			Organizer:      a.Organizer,
		})
	}

	if event.Organizer != nil {
		e.Organizer = &domain.Person{Email: event.Organizer.Email, DisplayName: event.Organizer.DisplayName}
	}
	if event.Creator != nil {
		e.Creator = &domain.Person{Email: event.Creator.Email, DisplayName: event.Creator.DisplayName}
	}

	if event.ConferenceData != nil {
		cd := &domain.ConferenceData{}
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep == nil {
				continue
			}
			cd.EntryPoints = append(cd.EntryPoints, domain.EntryPoint{EntryPointType: ep.EntryPointType, URI: ep.Uri})
		}
		e.ConferenceData = cd
	}

	return e
}

func convertDateTime(dt *calendar.EventDateTime) *domain.EventDateTime {
	if dt == nil {
		return nil
	}
	return &domain.EventDateTime{Date: dt.Date, DateTime: dt.DateTime, TimeZone: dt.TimeZone}
}
