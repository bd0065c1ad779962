package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/kpi"
)

// ParticipantInput 参加者KPIの計算条件
type ParticipantInput struct {
	Emails      []string
	PeriodStart time.Time
	PeriodEnd   time.Time
	// CalendarIDs 空の場合はユースケースのデフォルトを使う
	CalendarIDs []string
}

// ParticipantResult 参加者ごとのKPIと全体統計
type ParticipantResult struct {
	Participants kpi.ParticipantKPIs              `json:"participants"`
	Stats        domain.ParticipantAggregateStats `json:"stats"`
}

// ParticipantKPIUseCase 参加者別KPIを計算するユースケース
type ParticipantKPIUseCase struct {
	calendarRepo CalendarRepository
	aggregator   *kpi.ParticipantAggregator
	calendarIDs  []string
	logger       zerolog.Logger
	clock        func() time.Time
}

// NewParticipantKPIUseCase ユースケースを生成
func NewParticipantKPIUseCase(calendarRepo CalendarRepository, aggregator *kpi.ParticipantAggregator, calendarIDs []string, logger zerolog.Logger) *ParticipantKPIUseCase {
	return &ParticipantKPIUseCase{
		calendarRepo: calendarRepo,
		aggregator:   aggregator,
		calendarIDs:  calendarIDs,
		logger:       logger.With().Str("usecase", "participant_kpi").Logger(),
		clock:        time.Now,
	}
}

// Execute 期間内のイベントを取得し、指定された参加者のKPIを計算する
func (uc *ParticipantKPIUseCase) Execute(ctx context.Context, in ParticipantInput) (*ParticipantResult, error) {
	if !hasEmail(in.Emails) {
		return nil, ErrNoParticipants
	}
	if err := validateRange(in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}

	calendarIDs := in.CalendarIDs
	if len(calendarIDs) == 0 {
		calendarIDs = uc.calendarIDs
	}

	events, err := uc.calendarRepo.ListEvents(ctx, calendarIDs, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		uc.logger.Error().Err(err).Msg("イベントの取得に失敗しました")
		return nil, err
	}

	kpis := uc.aggregator.ComputeParticipantKPIs(events, in.Emails, uc.clock())

	uc.logger.Info().
		Int("participants", len(kpis)).
		Int("events", len(events)).
		Msg("参加者KPIを計算しました")

	return &ParticipantResult{
		Participants: kpis,
		Stats:        kpi.AggregatedStats(kpis),
	}, nil
}

func hasEmail(emails []string) bool {
	for _, e := range emails {
		if strings.TrimSpace(e) != "" {
			return true
		}
	}
	return false
}
