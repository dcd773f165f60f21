package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/obslog"
)

// telegramBackoffs is the retry schedule from spec.md §4.3: the first
// attempt is immediate, and up to 3 retries follow after waits of 1s, 2s
// and 4s, so a message is tried at most 4 times.
var telegramBackoffs = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// TelegramChannel posts a message through the Telegram Bot API. No Bot API
// client exists in the retrieved corpus (gotd/td speaks MTProto, a
// different protocol, for userbots rather than bot accounts), so this
// speaks the HTTP API directly.
type TelegramChannel struct {
	botToken      string
	chatID        string
	messageFormat string
	httpClient    *http.Client
	clock         clock.Clock
	logger        obslog.Logger
	apiBase       string // overridable in tests
}

// NewTelegramChannel builds a TelegramChannel for the given bot/chat.
func NewTelegramChannel(botToken, chatID, messageFormat string, clk clock.Clock, logger obslog.Logger) *TelegramChannel {
	if logger == nil {
		logger = obslog.Nop{}
	}
	return &TelegramChannel{
		botToken:      botToken,
		chatID:        chatID,
		messageFormat: messageFormat,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		clock:         clk,
		logger:        logger,
		apiBase:       "https://api.telegram.org",
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Deliver(ctx context.Context, slots []domain.Appointment) error {
	text := formatTelegramMessage(slots, c.messageFormat)

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := c.send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *telegramAPIError
		if !asAPIError(err, &apiErr) {
			return err
		}
		if apiErr.status >= 400 && apiErr.status < 500 && apiErr.status != 429 {
			return err // 4xx other than 429: no retry
		}
		if attempt >= len(telegramBackoffs) {
			return fmt.Errorf("telegram delivery failed after %d attempts: %w", attempt+1, lastErr)
		}

		wait := telegramBackoffs[attempt]
		if apiErr.status == 429 && apiErr.retryAfter > 0 {
			wait = apiErr.retryAfter
		}
		c.logger.Warn("telegram-retry", obslog.Fields{
			"bot_token": maskSecret(c.botToken, 6),
			"chat_id":   maskSecret(c.chatID, 3),
			"attempt":   attempt + 1,
			"wait":      wait.String(),
		})
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

type telegramAPIError struct {
	status     int
	retryAfter time.Duration
	body       string
}

func (e *telegramAPIError) Error() string {
	return fmt.Sprintf("telegram api returned status %d: %s", e.status, e.body)
}

func asAPIError(err error, target **telegramAPIError) bool {
	if e, ok := err.(*telegramAPIError); ok {
		*target = e
		return true
	}
	return false
}

func (c *TelegramChannel) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	form := url.Values{"chat_id": {c.chatID}, "text": {text}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &telegramAPIError{status: resp.StatusCode, body: string(body)}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.retryAfter = parseRetryAfter(body)
	}
	return apiErr
}

func parseRetryAfter(body []byte) time.Duration {
	var payload struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	return time.Duration(payload.Parameters.RetryAfter) * time.Second
}

func formatTelegramMessage(slots []domain.Appointment, format string) string {
	if format == "detailed" {
		var b strings.Builder
		fmt.Fprintf(&b, "%d IELTS slot(s) available:\n", len(slots))
		for _, s := range slots {
			fmt.Fprintf(&b, "- %s %s, %s (%s) in %s\n", s.Date, s.Time, s.ExamType, s.City, s.Location)
		}
		return b.String()
	}
	return fmt.Sprintf("%d IELTS slot(s) became available. Check the timetable now.", len(slots))
}
