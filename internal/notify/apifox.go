package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloudesk/internal/models"
)

// ApifoxNotifier files an incident document in Apifox. A failed create
// is reported as failed; no placeholder document id is fabricated.
type ApifoxNotifier struct {
	apiURL     string
	token      string
	dryRun     bool
	httpClient *http.Client
}

// NewApifoxNotifier creates the channel.
func NewApifoxNotifier(apiURL, token string, dryRun bool, timeout time.Duration) *ApifoxNotifier {
	return &ApifoxNotifier{
		apiURL:     apiURL,
		token:      token,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *ApifoxNotifier) Kind() models.ActionKind { return models.ActionApifox }

func (a *ApifoxNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	now := time.Now()
	doc := map[string]interface{}{
		"title":    fmt.Sprintf("[故障记录] %s", now.Format("2006-01-02 15:04:05")),
		"content":  buildIncidentDoc(alert, now),
		"tags":     []string{"故障", "监控", "API异常"},
		"category": "错误日志",
	}

	if a.dryRun {
		return "模拟创建文档", ErrSkipped
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal doc: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Apifox-Api-Token", a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("no document id in response")
	}

	return result.Data.ID, nil
}

// buildIncidentDoc renders the markdown incident record.
func buildIncidentDoc(alert Alert, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 故障记录 - %s\n", alert.CaseID)
	b.WriteString("## 基本信息\n")
	fmt.Fprintf(&b, "- **故障时间**: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **API状态**: %s\n", orNA(alert.APIStatus))
	fmt.Fprintf(&b, "- **响应时间**: %s\n", orNA(alert.APIResponseTime))
	fmt.Fprintf(&b, "- **用户查询**: %s\n", alert.UserQuery)

	if len(alert.MonitorLog) > 0 {
		b.WriteString("\n## 监控日志\n")
		for _, line := range alert.MonitorLog {
			fmt.Fprintf(&b, "- **时间**: %s\n", orNA(line.Timestamp))
			fmt.Fprintf(&b, "  **状态**: %s\n", orNA(line.Status))
			fmt.Fprintf(&b, "  **信息**: %s\n", orNA(line.Msg))
		}
	}

	b.WriteString("\n## 处理状态\n")
	fmt.Fprintf(&b, "- **记录时间**: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("- **状态**: 已记录到知识库\n")

	return b.String()
}
