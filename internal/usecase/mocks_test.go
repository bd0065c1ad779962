package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// MockCalendarRepository は CalendarRepository のテスト用モック
type MockCalendarRepository struct {
	mock.Mock
}

func (m *MockCalendarRepository) ListEvents(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) ([]domain.CalendarEvent, error) {
	args := m.Called(ctx, calendarIDs, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CalendarEvent), args.Error(1)
}

func (m *MockCalendarRepository) ListCalendars(ctx context.Context) ([]domain.Calendar, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Calendar), args.Error(1)
}

// MockSnapshotStore は SnapshotStore のテスト用モック
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Create(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func (m *MockSnapshotStore) FindLatest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error) {
	args := m.Called(ctx, includeCompany)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalendarKPISnapshot), args.Error(1)
}

func (m *MockSnapshotStore) FindHistory(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CalendarKPISnapshot), args.Error(1)
}

func (m *MockSnapshotStore) DeleteOlderThan(ctx context.Context, days int, now time.Time) (int64, error) {
	args := m.Called(ctx, days, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier は Notifier のテスト用モック
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendKPISummary(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

// MockSnapshotService は SnapshotService のテスト用モック
type MockSnapshotService struct {
	mock.Mock
}

func (m *MockSnapshotService) Compute(ctx context.Context, in ComputeInput) (*domain.CalendarKPISnapshot, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalendarKPISnapshot), args.Error(1)
}

func (m *MockSnapshotService) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}
