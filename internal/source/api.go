package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"payout-charts/internal/series"
	"payout-charts/internal/version"
)

const accountsPath = "/api/accounts/"

// APIOptions parameterise the pool API source.
type APIOptions struct {
	BaseURL   string
	Account   string
	Timeout   time.Duration
	UserAgent string
}

// API reads an account's payment chart from the mining pool HTTP API.
type API struct {
	opts    APIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAPI constructs a pool API source.
func NewAPI(opts APIOptions, logger zerolog.Logger) *API {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &API{
		opts:    opts,
		logger:  logger.With().Str("component", "api_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Snapshot fetches GET {base}/api/accounts/{account} and extracts paymentCharts.
func (a *API) Snapshot(ctx context.Context) ([]series.RawEvent, error) {
	if a.baseURL == "" {
		return nil, errors.New("pool api base url not configured")
	}
	if !common.IsHexAddress(a.opts.Account) {
		return nil, fmt.Errorf("account %q is not a valid address", a.opts.Account)
	}

	endpoint := a.baseURL + accountsPath + url.PathEscape(strings.ToLower(a.opts.Account))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		a.logger.Debug().Str("account", a.opts.Account).Msg("account not known to pool yet")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(body) > 0 {
			return nil, fmt.Errorf("pool api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("pool api error (%d)", resp.StatusCode)
	}

	events, err := DecodePaymentCharts(resp.Body)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Int("events", len(events)).Msg("account snapshot fetched")
	return events, nil
}

var _ EventSource = (*API)(nil)
