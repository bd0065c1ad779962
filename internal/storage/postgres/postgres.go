// Package postgres PostgreSQLを使ったKPIスナップショットストア
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RowScanner クエリ結果の行を読み出すインターフェース
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DB ストアが利用するデータベース操作
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store PostgreSQLに保存するスナップショットストア
type Store struct {
	db     DB
	closer func() error
	logger zerolog.Logger
}

// New マイグレーションを適用し、接続を開いてストアを作成
func New(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "postgres_store").Logger()

	if err := runMigrations(dsn, logger); err != nil {
		return nil, fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}

	store := NewWithDB(NewSQLDB(db), logger)
	store.closer = db.Close
	return store, nil
}

// NewWithDB 任意の DB 実装でストアを作成
func NewWithDB(db DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func runMigrations(dsn string, logger zerolog.Logger) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("ソースドライバの作成に失敗しました: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrateインスタンスの作成に失敗しました: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("マイグレーションバージョンの取得に失敗しました: %w", err)
	}

	if dirty {
		logger.Warn().Uint("version", version).Msg("データベースがdirty状態のためバージョンを強制します")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("マイグレーションバージョンの強制に失敗しました: %w", err)
		}
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug().Msg("適用するマイグレーションはありません")
	case err != nil:
		return err
	default:
		newVersion, _, _ := m.Version()
		logger.Info().
			Uint("from_version", version).
			Uint("to_version", newVersion).
			Msg("マイグレーションを適用しました")
	}
	return nil
}

// Close データベース接続を閉じる
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Create スナップショットを保存
func (s *Store) Create(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error {
	data, err := storage.Encode(snapshot)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO kpi_snapshots (id, period_start, period_end, include_company_calendars, calculated_at, data)
VALUES ($1, $2, $3, $4, $5, $6)`,
		snapshot.ID,
		snapshot.PeriodStart.UTC(),
		snapshot.PeriodEnd.UTC(),
		snapshot.IncludeCompanyCalendars,
		snapshot.CalculatedAt.UTC(),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// FindLatest 指定した会社カレンダー設定で最も新しいスナップショットを取得
func (s *Store) FindLatest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error) {
	snapshots, err := s.query(ctx, `
SELECT data FROM kpi_snapshots
WHERE include_company_calendars = $1
ORDER BY calculated_at DESC
LIMIT 1`, includeCompany)
	if err != nil {
		return nil, fmt.Errorf("最新スナップショットの取得に失敗しました: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	return snapshots[0], nil
}

// FindHistory 新しい順にスナップショットを取得
func (s *Store) FindHistory(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error) {
	snapshots, err := s.query(ctx, `
SELECT data FROM kpi_snapshots
ORDER BY calculated_at DESC
LIMIT $1`, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("スナップショット履歴の取得に失敗しました: %w", err)
	}
	return snapshots, nil
}

// DeleteOlderThan 計算日時が保持期間を過ぎたスナップショットを削除し、削除件数を返す
func (s *Store) DeleteOlderThan(ctx context.Context, days int, now time.Time) (int64, error) {
	cutoff := storage.RetentionCutoff(days, now).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM kpi_snapshots WHERE calculated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("古いスナップショットの削除に失敗しました: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("古いスナップショットを削除しました")
	return deleted, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*domain.CalendarKPISnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]*domain.CalendarKPISnapshot, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snapshot, err := storage.Decode(data)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
