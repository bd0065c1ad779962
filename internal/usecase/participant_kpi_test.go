package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/kpi"
)

func newParticipantKPIUseCase(repo *MockCalendarRepository) *ParticipantKPIUseCase {
	uc := NewParticipantKPIUseCase(repo, kpi.NewParticipantAggregator(zerolog.Nop(), time.UTC), []string{"primary"}, zerolog.Nop())
	uc.clock = func() time.Time { return fixedNow }
	return uc
}

func TestParticipantExecute_Success(t *testing.T) {
	repo := new(MockCalendarRepository)
	uc := newParticipantKPIUseCase(repo)

	repo.On("ListEvents", mock.Anything, []string{"primary"}, periodStart, periodEnd).
		Return([]domain.CalendarEvent{scenarioEvent()}, nil)

	result, err := uc.Execute(context.Background(), ParticipantInput{
		Emails:      []string{"a@x.com", "b@x.com", "c@x.com"},
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	require.NoError(t, err)
	require.Len(t, result.Participants, 3)

	a, ok := result.Participants.ByEmail("a@x.com")
	require.True(t, ok)
	assert.Equal(t, 1, a.AcceptedEvents)
	assert.Equal(t, 1, a.CompletedEvents)
	assert.Equal(t, 60, a.CompletedDurationMinutes)

	b, _ := result.Participants.ByEmail("b@x.com")
	assert.Equal(t, 1, b.NeedsActionEvents)
	assert.Equal(t, 0, b.ResponseRate)

	assert.Equal(t, 3, result.Stats.TotalParticipants)
	assert.Equal(t, 2, result.Stats.TotalEvents)
	require.NotNil(t, result.Stats.MostActiveParticipant)
	assert.Equal(t, "a@x.com", result.Stats.MostActiveParticipant.Email)
	require.NotNil(t, result.Stats.LeastActiveParticipant)
	assert.Equal(t, "c@x.com", result.Stats.LeastActiveParticipant.Email)
	repo.AssertExpectations(t)
}

func TestParticipantExecute_CustomCalendarIDs(t *testing.T) {
	repo := new(MockCalendarRepository)
	uc := newParticipantKPIUseCase(repo)

	repo.On("ListEvents", mock.Anything, []string{"team@group.calendar.google.com"}, periodStart, periodEnd).
		Return([]domain.CalendarEvent{}, nil)

	result, err := uc.Execute(context.Background(), ParticipantInput{
		Emails:      []string{"a@x.com"},
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		CalendarIDs: []string{"team@group.calendar.google.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantKPI{Email: "a@x.com"}, result.Participants[0])
	repo.AssertExpectations(t)
}

func TestParticipantExecute_Validation(t *testing.T) {
	repo := new(MockCalendarRepository)
	uc := newParticipantKPIUseCase(repo)

	_, err := uc.Execute(context.Background(), ParticipantInput{Emails: []string{" ", ""}, PeriodStart: periodStart, PeriodEnd: periodEnd})
	assert.ErrorIs(t, err, ErrNoParticipants)

	_, err = uc.Execute(context.Background(), ParticipantInput{Emails: []string{"a@x.com"}, PeriodStart: periodEnd, PeriodEnd: periodStart})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	repo.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParticipantExecute_RepositoryError(t *testing.T) {
	repo := new(MockCalendarRepository)
	uc := newParticipantKPIUseCase(repo)

	repo.On("ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("API error"))

	_, err := uc.Execute(context.Background(), ParticipantInput{Emails: []string{"a@x.com"}, PeriodStart: periodStart, PeriodEnd: periodEnd})
	assert.EqualError(t, err, "API error")
}
