package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

// LINENotifier LINE Messaging APIでKPIサマリーを通知するNotifierの実装
type LINENotifier struct {
	channelAccessToken string
	userID             string
	httpClient         *http.Client
	endpoint           string
	location           *time.Location
	clock              func() time.Time
}

// lineMessage LINE APIに送信するメッセージ構造体
type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// linePushRequest LINE Push APIのリクエスト構造体
type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// lineErrorResponse LINE APIのエラーレスポンス構造体
type lineErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// NewLINENotifier LINE通知クライアントを作成
func NewLINENotifier(channelAccessToken, userID string, location *time.Location) *LINENotifier {
	if location == nil {
		location = time.UTC
	}
	return &LINENotifier{
		channelAccessToken: channelAccessToken,
		userID:             userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: "https://api.line.me/v2/bot/message/push",
		location: location,
		clock:    time.Now,
	}
}

// SendKPISummary KPIスナップショットの要約をLINEで通知
func (n *LINENotifier) SendKPISummary(ctx context.Context, snapshot *domain.CalendarKPISnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("通知対象のスナップショットがありません")
	}
	return n.sendPushMessage(ctx, n.buildSummaryMessage(snapshot))
}

// buildSummaryMessage KPIサマリー用のメッセージを構築
func (n *LINENotifier) buildSummaryMessage(s *domain.CalendarKPISnapshot) string {
	var b strings.Builder
	now := n.clock().In(n.location)

	b.WriteString("Calendar KPI Summary\n")
	b.WriteString(fmt.Sprintf("%s %s 時点\n\n", formatDate(now), now.Format("15:04")))

	b.WriteString(fmt.Sprintf("集計期間: %s〜%s\n",
		formatDate(s.PeriodStart.In(n.location)),
		formatDate(s.PeriodEnd.In(n.location))))

	if s.TotalEvents == 0 {
		b.WriteString("期間内の予定なし\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("🔸 予定 %d件 (完了 %d / 予定 %d / キャンセル %d)\n",
		s.TotalEvents, s.CompletedEvents, s.UpcomingEvents, s.CancelledEvents))
	b.WriteString(fmt.Sprintf("🔸 参加者 %d人 (平均 %.1f人/件)\n",
		s.TotalUniqueAttendees, s.AverageAttendeesPerEvent))
	b.WriteString(fmt.Sprintf("🔸 合計 %.1f時間 (平均 %.0f分)\n",
		s.TotalEventHours, s.AverageEventDuration))
	b.WriteString(fmt.Sprintf("🔸 回答率 %.1f%%\n", s.ResponseRateStats.ResponseRate))

	if engaged := s.AttendeeAnalytics.MostEngagedAttendees; len(engaged) > 0 {
		top := engaged[0]
		name := top.DisplayName
		if name == "" {
			name = top.Email
		}
		b.WriteString(fmt.Sprintf("🔸 最多参加: %s (%d件)\n", name, top.EventsCount))
	}

	return b.String()
}

// formatDate 日付を「1/2(月)」形式に整形
func formatDate(t time.Time) string {
	return fmt.Sprintf("%s(%s)", t.Format("1/2"), getWeekdayJapanese(t.Weekday()))
}

// sendPushMessage LINE Push APIでメッセージを送信
func (n *LINENotifier) sendPushMessage(ctx context.Context, message string) error {
	pushRequest := linePushRequest{
		To: n.userID,
		Messages: []lineMessage{
			{
				Type: "text",
				Text: message,
			},
		},
	}

	requestBody, err := json.Marshal(pushRequest)
	if err != nil {
		return fmt.Errorf("リクエストボディのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", n.channelAccessToken))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LINE APIリクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorResponse lineErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResponse); err != nil {
			return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d, レスポンス解析不可: %v)", resp.StatusCode, err)
		}

		errorDetails := errorResponse.Message
		if len(errorResponse.Details) > 0 {
			errorDetails += fmt.Sprintf(" (詳細: %s)", errorResponse.Details[0].Message)
		}

		return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d): %s", resp.StatusCode, errorDetails)
	}

	return nil
}

// getWeekdayJapanese 曜日を日本語に変換
func getWeekdayJapanese(weekday time.Weekday) string {
	return [...]string{"日", "月", "火", "水", "木", "金", "土"}[weekday]
}
