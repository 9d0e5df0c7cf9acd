package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/httputil"
	"github.com/kjannette/moverbot/internal/logx"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Sender posts messages to a Slack or Discord incoming webhook. The
// webhook URL selects the channel, so channelID is ignored.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "MoverBot"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		log: logx.Named("webhook"),
	}
}

func (s *Sender) Send(ctx context.Context, _ string, msg string) error {
	text := plainText(msg)
	s.log.Info("chat.message", zap.String("bot", s.botName), zap.String("text", text))

	if s.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(s.formatPayload(text))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Error("chat.send_failed", zap.Error(err))
		return fmt.Errorf("webhook send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  fmt.Sprintf("[%s] %s", s.botName, msg),
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("[%s] %s", s.botName, msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

// plainText strips the Telegram HTML markup for webhook targets.
func plainText(msg string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(msg, ""))
}
