package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloudesk/internal/models"
)

// FeishuNotifier posts an interactive alert card to a Feishu group
// webhook.
type FeishuNotifier struct {
	webhookURL string
	dryRun     bool
	httpClient *http.Client
}

// NewFeishuNotifier creates the channel. dryRun skips the actual POST
// and records the dispatch as skipped.
func NewFeishuNotifier(webhookURL string, dryRun bool, timeout time.Duration) *FeishuNotifier {
	return &FeishuNotifier{
		webhookURL: webhookURL,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *FeishuNotifier) Kind() models.ActionKind { return models.ActionFeishu }

func (f *FeishuNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	card := buildFeishuCard(alert, time.Now())

	if f.dryRun {
		return "模拟发送", ErrSkipped
	}

	body, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("webhook error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return fmt.Sprintf("HTTP %d", resp.StatusCode), nil
}

// buildFeishuCard renders the red incident card: alert time, case id,
// API status, the newest error from the monitor log and the triggering
// user query.
func buildFeishuCard(alert Alert, now time.Time) map[string]interface{} {
	elements := []map[string]interface{}{
		{
			"tag": "div",
			"text": map[string]interface{}{
				"tag": "lark_md",
				"content": fmt.Sprintf("**告警时间**: %s\n**案例ID**: %s",
					now.Format("2006-01-02 15:04:05"), alert.CaseID),
			},
		},
		{
			"tag": "div",
			"text": map[string]interface{}{
				"tag": "lark_md",
				"content": fmt.Sprintf("**API状态**: %s\n**响应时间**: %s",
					orNA(alert.APIStatus), orNA(alert.APIResponseTime)),
			},
		},
	}

	if alert.LatestError != nil {
		elements = append(elements, map[string]interface{}{
			"tag": "div",
			"text": map[string]interface{}{
				"tag": "lark_md",
				"content": fmt.Sprintf("**最近错误**:\n时间: %s\n信息: %s",
					alert.LatestError.Timestamp.Format("2006-01-02 15:04:05"), alert.LatestError.Message),
			},
		})
	}

	elements = append(elements,
		map[string]interface{}{
			"tag": "div",
			"text": map[string]interface{}{
				"tag":     "lark_md",
				"content": fmt.Sprintf("**用户查询**: %s", orNA(alert.UserQuery)),
			},
		},
		map[string]interface{}{
			"tag": "note",
			"elements": []map[string]interface{}{
				{"tag": "plain_text", "content": "已触发自动化处理流程，相关文档正在生成中..."},
			},
		},
	)

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title":    map[string]interface{}{"tag": "plain_text", "content": "🚨 系统故障告警"},
				"template": "red",
			},
			"elements": elements,
		},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
