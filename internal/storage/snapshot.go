// Package storage KPIスナップショット永続化の共通処理
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// 履歴取得件数のデフォルトと上限
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// Encode スナップショットを保存用のJSONに変換
func Encode(s *domain.CalendarKPISnapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("保存対象のスナップショットがありません")
	}
	if s.ID == "" {
		return nil, fmt.Errorf("スナップショットIDが設定されていません")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("スナップショットのJSON変換に失敗しました: %w", err)
	}
	return data, nil
}

// Decode 保存されたJSONからスナップショットを復元
func Decode(data []byte) (*domain.CalendarKPISnapshot, error) {
	var s domain.CalendarKPISnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("スナップショットのJSON解析に失敗しました: %w", err)
	}
	return &s, nil
}

// NormalizeLimit 履歴取得件数を [1, MaxHistoryLimit] に収める（0以下はデフォルト）
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// RetentionCutoff 保持日数から削除基準時刻を算出
func RetentionCutoff(days int, now time.Time) time.Time {
	return now.AddDate(0, 0, -days)
}
