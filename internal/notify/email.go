package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"cloudesk/internal/models"
)

// EmailNotifier sends a plain-text incident summary over SMTP.
type EmailNotifier struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       []string
	dryRun   bool
}

// NewEmailNotifier creates the channel.
func NewEmailNotifier(host, port, user, password, from string, to []string, dryRun bool) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
		dryRun:   dryRun,
	}
}

func (e *EmailNotifier) Kind() models.ActionKind { return models.ActionEmail }

func (e *EmailNotifier) Send(ctx context.Context, alert Alert) (string, error) {
	msg := e.buildMessage(alert, time.Now())

	if e.dryRun {
		return "模拟发送邮件", ErrSkipped
	}

	// net/smtp has no context support; honor cancellation around it.
	done := make(chan error, 1)
	go func() {
		auth := smtp.PlainAuth("", e.user, e.password, e.host)
		done <- smtp.SendMail(e.host+":"+e.port, auth, e.from, e.to, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send failed: %w", err)
		}
		return fmt.Sprintf("delivered to %d recipients", len(e.to)), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *EmailNotifier) buildMessage(alert Alert, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: =?UTF-8?B?%s?=\r\n", encodeBase64(fmt.Sprintf("[系统告警] 案例 %s", alert.CaseID)))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&b, "告警时间: %s\r\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "案例ID: %s\r\n", alert.CaseID)
	fmt.Fprintf(&b, "API状态: %s\r\n", orNA(alert.APIStatus))
	fmt.Fprintf(&b, "响应时间: %s\r\n", orNA(alert.APIResponseTime))
	if alert.StateSummary != "" {
		fmt.Fprintf(&b, "系统状态: %s\r\n", alert.StateSummary)
	}
	if alert.LatestError != nil {
		fmt.Fprintf(&b, "最近错误: %s (%s)\r\n",
			alert.LatestError.Message, alert.LatestError.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "用户查询: %s\r\n", alert.UserQuery)
	return b.String()
}

func encodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
