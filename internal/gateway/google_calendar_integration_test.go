//go:build integration

package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/config"
)

func TestListEvents_Integration(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("インテグレーションテストの実行には.envファイルに設定された有効な認証情報が必要です: %v", err)
	}
	require.NotEmpty(t, cfg.GoogleCredentials, "GOOGLE_CREDENTIALSが設定されていません")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := NewGoogleCalendarRepository(ctx, []byte(cfg.GoogleCredentials), zerolog.Nop())
	require.NoError(t, err, "カレンダーリポジトリの作成に失敗しました")

	t.Run("直近1週間のイベントを実際に取得する", func(t *testing.T) {
		// 取得件数はカレンダーの状態に依存するため、エラーなく完了することのみ確認
		now := time.Now()
		_, err := repo.ListEvents(ctx, cfg.CalendarIDs, now.AddDate(0, 0, -7), now)
		assert.NoError(t, err, "ListEventsで予期せぬエラーが発生しました")
	})
}
