package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"payout-charts/internal/series"
)

// Report describes a tick that could not materialize its series.
type Report struct {
	TickID  string
	Tick    time.Time
	Account string
	Err     error
}

// Reporter is the error channel for data problems found during a tick.
type Reporter interface {
	Report(ctx context.Context, report Report) error
}

// LogReporter writes reports to the structured log.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter constructs a reporter backed by zerolog.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, report Report) error {
	evt := r.logger.Error().Err(report.Err).
		Str("tick_id", report.TickID).
		Time("tick", report.Tick).
		Str("account", report.Account)

	var invalid *series.InvalidEventError
	if errors.As(report.Err, &invalid) {
		evt = evt.Int("event_index", invalid.Index).Int64("event_ts", invalid.Event.Timestamp)
	}
	evt.Msg("payment series rejected")
	return nil
}

// TelegramReporter pushes reports through the Telegram Bot API. Identical messages
// are suppressed for the cooldown window so a persistently bad event is not re-sent
// on every tick.
type TelegramReporter struct {
	botToken string
	chatID   string
	baseURL  string
	cooldown time.Duration
	client   *http.Client
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTelegramReporter constructs a Telegram reporter.
func NewTelegramReporter(botToken, chatID, baseURL string, timeout, cooldown time.Duration, logger zerolog.Logger) *TelegramReporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramReporter{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cooldown: cooldown,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Report calls sendMessage unless the same message went out within the cooldown.
func (n *TelegramReporter) Report(ctx context.Context, report Report) error {
	key := report.Account + "|" + errorText(report.Err)
	if n.suppressed(key) {
		n.logger.Debug().Str("tick_id", report.TickID).Msg("report suppressed by cooldown")
		return nil
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(report),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.markSent(key)
	n.logger.Info().Str("tick_id", report.TickID).
		Str("account", report.Account).
		Msg("report sent (Telegram)")
	return nil
}

func (n *TelegramReporter) suppressed(key string) bool {
	if n.cooldown <= 0 {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.lastSent[key]
	return ok && n.now().Sub(last) < n.cooldown
}

func (n *TelegramReporter) markSent(key string) {
	n.mu.Lock()
	n.lastSent[key] = n.now()
	n.mu.Unlock()
}

func renderMessage(report Report) string {
	builder := strings.Builder{}
	builder.WriteString("[Payout Chart Alert]\n")
	builder.WriteString(fmt.Sprintf("Tick: %s UTC\n", report.Tick.UTC().Format(time.RFC3339)))
	if report.Account != "" {
		builder.WriteString(fmt.Sprintf("Account: %s\n", report.Account))
	}
	builder.WriteString(fmt.Sprintf("Error: %s\n", errorText(report.Err)))
	if report.TickID != "" {
		builder.WriteString(fmt.Sprintf("Tick ID: %s\n", report.TickID))
	}
	return builder.String()
}

func errorText(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// MultiReporter fans a report out to several reporters, joining their errors.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(ctx context.Context, report Report) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Reporter = (*LogReporter)(nil)
	_ Reporter = (*TelegramReporter)(nil)
	_ Reporter = MultiReporter(nil)
)
