package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/handler"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/kpi"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/usecase"
)

// fakeCalendarKPIService 呼び出し内容を記録する CalendarKPIService
type fakeCalendarKPIService struct {
	ComputeFn func(in usecase.ComputeInput) (*domain.CalendarKPISnapshot, error)
	LatestFn  func(includeCompany bool) (*domain.CalendarKPISnapshot, error)
	HistoryFn func(limit int) ([]*domain.CalendarKPISnapshot, error)
	PruneFn   func(days int) (int64, error)

	lastCompute usecase.ComputeInput
	lastLimit   int
	called      bool
}

func (f *fakeCalendarKPIService) Compute(_ context.Context, in usecase.ComputeInput) (*domain.CalendarKPISnapshot, error) {
	f.called = true
	f.lastCompute = in
	return f.ComputeFn(in)
}

func (f *fakeCalendarKPIService) Latest(_ context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error) {
	f.called = true
	return f.LatestFn(includeCompany)
}

func (f *fakeCalendarKPIService) History(_ context.Context, limit int) ([]*domain.CalendarKPISnapshot, error) {
	f.called = true
	f.lastLimit = limit
	return f.HistoryFn(limit)
}

func (f *fakeCalendarKPIService) Prune(_ context.Context, days int) (int64, error) {
	f.called = true
	return f.PruneFn(days)
}

// fakeParticipantKPIService 呼び出し内容を記録する ParticipantKPIService
type fakeParticipantKPIService struct {
	ExecuteFn func(in usecase.ParticipantInput) (*usecase.ParticipantResult, error)
	lastInput usecase.ParticipantInput
	called    bool
}

func (f *fakeParticipantKPIService) Execute(_ context.Context, in usecase.ParticipantInput) (*usecase.ParticipantResult, error) {
	f.called = true
	f.lastInput = in
	return f.ExecuteFn(in)
}

var jst = time.FixedZone("JST", 9*60*60)

func setupApp(t *testing.T, cal handler.CalendarKPIService, part handler.ParticipantKPIService) *fiber.App {
	t.Helper()
	app := fiber.New()
	handler.NewKPIHandler(cal, part, jst, zerolog.Nop()).Register(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return resp, decoded
}

// --- POST /kpi/calendar ---

func TestComputeCalendarKPI_Success(t *testing.T) {
	cal := &fakeCalendarKPIService{
		ComputeFn: func(in usecase.ComputeInput) (*domain.CalendarKPISnapshot, error) {
			return &domain.CalendarKPISnapshot{
				ID:          "snap-1",
				PeriodStart: in.PeriodStart,
				PeriodEnd:   in.PeriodEnd,
				TotalEvents: 4,
			}, nil
		},
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	params := url.Values{}
	params.Set("periodStart", "2024-01-01")
	params.Set("periodEnd", "2024-01-31")
	params.Set("includeCompany", "true")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/kpi/calendar?"+params.Encode(), nil))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "snap-1", body["id"])
	assert.Equal(t, float64(4), body["totalEvents"])
	assert.Equal(t, "2024-01-01T00:00:00+09:00", body["periodStart"])

	assert.True(t, cal.lastCompute.IncludeCompanyCalendars)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, jst), cal.lastCompute.PeriodStart)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, int(999*time.Millisecond), jst), cal.lastCompute.PeriodEnd)
}

func TestComputeCalendarKPI_RFC3339(t *testing.T) {
	cal := &fakeCalendarKPIService{
		ComputeFn: func(in usecase.ComputeInput) (*domain.CalendarKPISnapshot, error) {
			return &domain.CalendarKPISnapshot{ID: "snap-2"}, nil
		},
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	params := url.Values{}
	params.Set("periodStart", "2024-01-01T00:00:00Z")
	params.Set("periodEnd", "2024-01-31T23:59:59Z")

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/kpi/calendar?"+params.Encode(), nil))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, cal.lastCompute.IncludeCompanyCalendars)
	assert.True(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC).Equal(cal.lastCompute.PeriodEnd))
}

func TestComputeCalendarKPI_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "期間なし", query: ""},
		{name: "不正な開始日", query: "periodStart=yesterday&periodEnd=2024-01-31"},
		{name: "不正なフラグ", query: "periodStart=2024-01-01&periodEnd=2024-01-31&includeCompany=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &fakeCalendarKPIService{}
			app := setupApp(t, cal, &fakeParticipantKPIService{})

			resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/kpi/calendar?"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			assert.False(t, cal.called)
		})
	}
}

func TestComputeCalendarKPI_UseCaseErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "期間の逆転", err: usecase.ErrInvalidTimeRange, expected: http.StatusBadRequest},
		{name: "集計失敗", err: usecase.ErrKPIComputationFailed, expected: http.StatusInternalServerError},
		{name: "API障害", err: errors.New("calendar API down"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &fakeCalendarKPIService{
				ComputeFn: func(usecase.ComputeInput) (*domain.CalendarKPISnapshot, error) { return nil, tt.err },
			}
			app := setupApp(t, cal, &fakeParticipantKPIService{})

			resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/kpi/calendar?periodStart=2024-01-31&periodEnd=2024-01-01", nil))
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

// --- GET /kpi/calendar ---

func TestGetLatestCalendarKPI(t *testing.T) {
	cal := &fakeCalendarKPIService{
		LatestFn: func(includeCompany bool) (*domain.CalendarKPISnapshot, error) {
			if includeCompany {
				return nil, domain.ErrSnapshotNotFound
			}
			return &domain.CalendarKPISnapshot{ID: "latest", DayOfWeekStats: map[string]int{"Monday": 1}}, nil
		},
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "latest", body["id"])

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar?includeCompany=true", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}

// --- GET /kpi/calendar/history ---

func TestGetCalendarKPIHistory(t *testing.T) {
	cal := &fakeCalendarKPIService{
		HistoryFn: func(limit int) ([]*domain.CalendarKPISnapshot, error) {
			return []*domain.CalendarKPISnapshot{{ID: "b"}, {ID: "a"}}, nil
		},
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar/history?limit=2", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, cal.lastLimit)
	snapshots, ok := body["snapshots"].([]any)
	require.True(t, ok)
	assert.Len(t, snapshots, 2)

	_, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar/history", nil))
	assert.Equal(t, 0, cal.lastLimit)
}

func TestGetCalendarKPIHistory_EmptyIsArray(t *testing.T) {
	cal := &fakeCalendarKPIService{
		HistoryFn: func(int) ([]*domain.CalendarKPISnapshot, error) { return nil, nil },
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar/history", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["snapshots"])
}

func TestGetCalendarKPIHistory_InvalidLimit(t *testing.T) {
	cal := &fakeCalendarKPIService{}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	for _, limit := range []string{"abc", "0", "-1"} {
		resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kpi/calendar/history?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, limit)
	}
	assert.False(t, cal.called)
}

// --- DELETE /kpi/calendar ---

func TestPruneCalendarKPI(t *testing.T) {
	cal := &fakeCalendarKPIService{
		PruneFn: func(days int) (int64, error) {
			if days <= 0 {
				return 0, usecase.ErrInvalidRetention
			}
			return 3, nil
		},
	}
	app := setupApp(t, cal, &fakeParticipantKPIService{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/kpi/calendar?olderThanDays=30", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["deleted"])

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/kpi/calendar?olderThanDays=0", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/kpi/calendar", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- POST /kpi/participants ---

func TestComputeParticipantKPI_Success(t *testing.T) {
	part := &fakeParticipantKPIService{
		ExecuteFn: func(in usecase.ParticipantInput) (*usecase.ParticipantResult, error) {
			kpis := kpi.ParticipantKPIs{{Email: "a@x.com", TotalEvents: 2, AcceptedEvents: 2, ParticipationRate: 100}}
			return &usecase.ParticipantResult{Participants: kpis, Stats: kpi.AggregatedStats(kpis)}, nil
		},
	}
	app := setupApp(t, &fakeCalendarKPIService{}, part)

	reqBody := `{"emails":["a@x.com"],"periodStart":"2024-01-01","periodEnd":"2024-01-31T23:59:59Z","calendarIds":["primary"]}`
	req := httptest.NewRequest(http.MethodPost, "/kpi/participants", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")

	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	participants, ok := body["participants"].([]any)
	require.True(t, ok)
	require.Len(t, participants, 1)
	assert.Equal(t, "a@x.com", participants[0].(map[string]any)["email"])

	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["totalParticipants"])

	assert.Equal(t, []string{"a@x.com"}, part.lastInput.Emails)
	assert.Equal(t, []string{"primary"}, part.lastInput.CalendarIDs)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, jst), part.lastInput.PeriodStart)
}

func TestComputeParticipantKPI_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{name: "不正なJSON", body: `{"emails":`},
		{name: "期間なし", body: `{"emails":["a@x.com"]}`},
		{name: "参加者なし", body: `{"emails":[],"periodStart":"2024-01-01","periodEnd":"2024-01-31"}`, err: usecase.ErrNoParticipants},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := &fakeParticipantKPIService{
				ExecuteFn: func(usecase.ParticipantInput) (*usecase.ParticipantResult, error) { return nil, tt.err },
			}
			app := setupApp(t, &fakeCalendarKPIService{}, part)

			req := httptest.NewRequest(http.MethodPost, "/kpi/participants", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := doRequest(t, app, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.err != nil, part.called)
		})
	}
}
