package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/httputil"
	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGeckoOptions struct {
	BaseURL   string
	Pages     int
	PerPage   int
	PagePause time.Duration
}

// CoinGeckoClient lists the market-cap ranked coins used as poll candidates.
type CoinGeckoClient struct {
	httpClient *http.Client
	retry      httputil.RetryConfig
	opts       CoinGeckoOptions
	log        *zap.Logger
}

func NewCoinGeckoClient(opts CoinGeckoOptions) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCoinGeckoURL
	}
	if opts.Pages <= 0 {
		opts.Pages = 3
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	return &CoinGeckoClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		opts: opts,
		log:  logx.Named("coingecko"),
	}
}

// FetchCandidates walks the /coins/markets pages in rank order. A failing
// page stops pagination; whatever was collected before it is returned.
func (c *CoinGeckoClient) FetchCandidates(ctx context.Context) ([]models.Candidate, error) {
	var out []models.Candidate
	for page := 1; page <= c.opts.Pages; page++ {
		if page > 1 && c.opts.PagePause > 0 {
			select {
			case <-ctx.Done():
				return partial(out, ctx.Err())
			case <-time.After(c.opts.PagePause):
			}
		}

		coins, err := c.fetchPage(ctx, page)
		if err != nil {
			c.log.Warn("candidates.page_failed",
				zap.Int("page", page),
				zap.Int("collected", len(out)),
				zap.Error(err))
			return partial(out, err)
		}
		out = append(out, coins...)
		if len(coins) < c.opts.PerPage {
			break
		}
	}
	return out, nil
}

func partial(out []models.Candidate, err error) ([]models.Candidate, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("coingecko candidates: %w", err)
	}
	return out, nil
}

func (c *CoinGeckoClient) fetchPage(ctx context.Context, page int) ([]models.Candidate, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.opts.PerPage))
	q.Set("page", strconv.Itoa(page))
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/coins/markets?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: coingecko returned status %d", models.ErrDataUnavailable, resp.StatusCode)
	}

	var data []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", models.ErrMalformedResponse, err)
	}

	coins := make([]models.Candidate, 0, len(data))
	for _, d := range data {
		if d.Symbol == "" {
			continue
		}
		coins = append(coins, models.Candidate{ID: d.ID, Symbol: d.Symbol})
	}
	return coins, nil
}
