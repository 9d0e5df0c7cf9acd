package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/httputil"
	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
)

const (
	DefaultBinanceURL = "https://api.binance.com"

	// ProbePair is fetched to check exchange connectivity.
	ProbePair = "BTCUSDT"
)

type BinanceOptions struct {
	BaseURL string
	Timeout time.Duration
	Retry   httputil.RetryConfig
}

// BinanceClient answers which pairs trade on the exchange and what they
// currently cost.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	api        *binance.Client
	log        *zap.Logger
}

func NewBinanceClient(opts BinanceOptions) *BinanceClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBinanceURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = httputil.DefaultRetry
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	api := binance.NewClient("", "")
	api.BaseURL = baseURL
	api.HTTPClient = httputil.NewClient(opts.Timeout, opts.Retry)

	return &BinanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      opts.Retry,
		api:        api,
		log:        logx.Named("binance"),
	}
}

// FetchValidPairs returns the set of tradable pair names from
// /api/v3/exchangeInfo. A body without a "symbols" field is rejected.
func (c *BinanceClient) FetchValidPairs(ctx context.Context) (map[string]struct{}, error) {
	endpoint := c.baseURL + "/api/v3/exchangeInfo"
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: exchange info returned status %d", models.ErrDataUnavailable, resp.StatusCode)
	}

	var data struct {
		Symbols *[]struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode exchange info: %w", models.ErrMalformedResponse, err)
	}
	if data.Symbols == nil {
		return nil, fmt.Errorf("%w: exchange info has no symbols field", models.ErrMalformedResponse)
	}

	pairs := make(map[string]struct{}, len(*data.Symbols))
	for _, s := range *data.Symbols {
		if s.Symbol == "" {
			continue
		}
		if s.Status != "" && s.Status != "TRADING" {
			continue
		}
		pairs[s.Symbol] = struct{}{}
	}
	c.log.Debug("pairs.fetched", zap.Int("count", len(pairs)))
	return pairs, nil
}

// FetchPrice returns the last traded price of pair.
func (c *BinanceClient) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	prices, err := c.api.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyBinance(pair, err)
	}
	for _, p := range prices {
		if p.Symbol != pair {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: price %q for %s", models.ErrMalformedResponse, p.Price, pair)
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s reported %s", models.ErrInvalidPrice, pair, price)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no price for %s", models.ErrDataUnavailable, pair)
}

// FetchQuoteVolumes returns the rolling 24h quote-asset volume of every
// pair from /api/v3/ticker/24hr. Entries with an unparseable volume are
// left out.
func (c *BinanceClient) FetchQuoteVolumes(ctx context.Context) (map[string]decimal.Decimal, error) {
	stats, err := c.api.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, classifyBinance("24h stats", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: 24h stats are empty", models.ErrDataUnavailable)
	}

	out := make(map[string]decimal.Decimal, len(stats))
	for _, st := range stats {
		if st == nil || st.Symbol == "" {
			continue
		}
		v, err := decimal.NewFromString(st.QuoteVolume)
		if err != nil {
			continue
		}
		out[st.Symbol] = v
	}
	c.log.Debug("volumes.fetched", zap.Int("count", len(out)))
	return out, nil
}

// Diagnose probes the exchange with a single well-known pair.
func (c *BinanceClient) Diagnose(ctx context.Context) models.ExchangeHealth {
	price, err := c.FetchPrice(ctx, ProbePair)
	switch {
	case err == nil && price.IsPositive():
		return models.ExchangeOK
	case err != nil && errors.Is(models.Classify(err), models.ErrTransientNetwork):
		return models.ExchangeNetworkDown
	default:
		return models.ExchangeNoData
	}
}

func classifyBinance(pair string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s: binance code %d: %s", models.ErrDataUnavailable, pair, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("price %s: %w", pair, err)
}
