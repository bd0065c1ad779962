// Package app 設定から各コンポーネントを組み立てる
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/config"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/gateway"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/kpi"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/storage/postgres"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/storage/sqlite"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/usecase"
)

// SnapshotStore 終了処理を持つスナップショットストア
type SnapshotStore interface {
	usecase.SnapshotStore
	Close() error
}

// Components 組み立て済みのユースケース群
type Components struct {
	CalendarKPI    *usecase.CalendarKPIUseCase
	ParticipantKPI *usecase.ParticipantKPIUseCase
	Refresh        *usecase.RefreshSnapshotUseCase
	store          SnapshotStore
}

// Close ストアの接続を閉じる
func (c *Components) Close() error {
	return c.store.Close()
}

// Build 設定に従ってリポジトリ・ストア・ユースケースを作成
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, err := gateway.NewGoogleCalendarRepository(ctx, []byte(cfg.GoogleCredentials), logger)
	if err != nil {
		return nil, fmt.Errorf("Google Calendarの初期化に失敗しました: %w", err)
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	calendarKPI := usecase.NewCalendarKPIUseCase(
		repo,
		store,
		kpi.NewEventAggregator(logger, loc, cfg.CompanyCalendarDomain),
		cfg.CalendarIDs,
		logger,
	)
	participantKPI := usecase.NewParticipantKPIUseCase(
		repo,
		kpi.NewParticipantAggregator(logger, loc),
		cfg.CalendarIDs,
		logger,
	)

	// LINE未設定の場合は通知しない（nilインターフェースを渡す）
	var notifier usecase.Notifier
	if cfg.LINEEnabled() {
		notifier = gateway.NewLINENotifier(cfg.LineChannelAccessToken, cfg.LineUserID, loc)
	}

	refresh := usecase.NewRefreshSnapshotUseCase(calendarKPI, notifier, usecase.RefreshOptions{
		LookbackDays:            cfg.LookbackDays,
		LookaheadDays:           cfg.LookaheadDays,
		RetentionDays:           cfg.RetentionDays,
		IncludeCompanyCalendars: cfg.IncludeCompanyCalendars,
	}, logger)

	return &Components{
		CalendarKPI:    calendarKPI,
		ParticipantKPI: participantKPI,
		Refresh:        refresh,
		store:          store,
	}, nil
}

// OpenStore STORAGE_TYPE に応じたストアを開く
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (SnapshotStore, error) {
	switch cfg.StorageType {
	case config.StorageSQLite:
		store, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアの初期化に失敗しました: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("PostgreSQLストアの初期化に失敗しました: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("STORAGE_TYPEの値が不正です: %s", cfg.StorageType)
	}
}
