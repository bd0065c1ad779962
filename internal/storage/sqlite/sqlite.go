// Package sqlite SQLiteを使ったKPIスナップショットストア
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store SQLiteに保存するスナップショットストア
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New データベースを開き、マイグレーションを適用してストアを作成
func New(path string, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "sqlite_store").Logger()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("データベースディレクトリの作成に失敗しました: %w", err)
	}

	if err := runMigrations(path, logger); err != nil {
		return nil, fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("WALモードの有効化に失敗しました: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("busy_timeoutの設定に失敗しました: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// runMigrations 専用の接続でマイグレーションを適用（migrate.Close が接続を閉じるため）
func runMigrations(path string, logger zerolog.Logger) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("ソースドライバの作成に失敗しました: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("データベースドライバの作成に失敗しました: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		_ = db.Close()
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
	return s.db.Close()
}

// Create スナップショットを保存
func (s *Store) Create(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error {
	data, err := storage.Encode(snapshot)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO kpi_snapshots (id, period_start, period_end, include_company_calendars, calculated_at, data)
VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.PeriodStart.UnixMilli(),
		snapshot.PeriodEnd.UnixMilli(),
		boolToInt(snapshot.IncludeCompanyCalendars),
		snapshot.CalculatedAt.UnixMilli(),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// FindLatest 指定した会社カレンダー設定で最も新しいスナップショットを取得
func (s *Store) FindLatest(ctx context.Context, includeCompany bool) (*domain.CalendarKPISnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
SELECT data FROM kpi_snapshots
WHERE include_company_calendars = ?
ORDER BY calculated_at DESC
LIMIT 1`, boolToInt(includeCompany)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("最新スナップショットの取得に失敗しました: %w", err)
	}
	return storage.Decode([]byte(data))
}

// FindHistory 新しい順にスナップショットを取得
func (s *Store) FindHistory(ctx context.Context, limit int) ([]*domain.CalendarKPISnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT data FROM kpi_snapshots
ORDER BY calculated_at DESC
LIMIT ?`, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("スナップショット履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*domain.CalendarKPISnapshot, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snapshot, err := storage.Decode([]byte(data))
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

// DeleteOlderThan 計算日時が保持期間を過ぎたスナップショットを削除し、削除件数を返す
func (s *Store) DeleteOlderThan(ctx context.Context, days int, now time.Time) (int64, error) {
	cutoff := storage.RetentionCutoff(days, now)
	res, err := s.db.ExecContext(ctx, `DELETE FROM kpi_snapshots WHERE calculated_at < ?`, cutoff.UnixMilli())
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
