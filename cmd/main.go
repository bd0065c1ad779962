package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/app"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/config"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/logging"
)

// LambdaEvent Lambda実行時のイベント構造体
type LambdaEvent struct {
	// EventBridge Schedulerからの実行なので特に使用しない
}

// LambdaResponse Lambda実行結果のレスポンス
type LambdaResponse struct {
	StatusCode  int    `json:"statusCode"`
	Message     string `json:"message"`
	SnapshotID  string `json:"snapshotId,omitempty"`
	TotalEvents int    `json:"totalEvents,omitempty"`
	Deleted     int64  `json:"deleted,omitempty"`
}

// handler Lambda関数のメインハンドラー
func handler(ctx context.Context, _ LambdaEvent) (LambdaResponse, error) {
	// 設定を読み込み
	cfg, err := config.Load()
	if err != nil {
		return LambdaResponse{
			StatusCode: 500,
			Message:    "設定読み込みエラー",
		}, err
	}

	logger := logging.New(cfg.LogLevel)

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("初期化に失敗しました")
		return LambdaResponse{
			StatusCode: 500,
			Message:    "初期化エラー",
		}, err
	}
	defer components.Close()

	// スナップショットを再計算し、古いものを削除
	result, err := components.Refresh.Execute(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("スナップショットの更新に失敗しました")
		resp := LambdaResponse{
			StatusCode: 500,
			Message:    "スナップショット更新エラー",
		}
		if result != nil && result.Snapshot != nil {
			resp.SnapshotID = result.Snapshot.ID
		}
		return resp, err
	}

	message := "スナップショット更新完了"
	if result.Notified {
		message += "（LINE通知済み）"
	}

	logger.Info().
		Str("snapshot_id", result.Snapshot.ID).
		Int64("deleted", result.Deleted).
		Bool("notified", result.Notified).
		Msg(message)

	return LambdaResponse{
		StatusCode:  200,
		Message:     message,
		SnapshotID:  result.Snapshot.ID,
		TotalEvents: result.Snapshot.TotalEvents,
		Deleted:     result.Deleted,
	}, nil
}

func main() {
	lambda.Start(handler)
}

