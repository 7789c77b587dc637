// Package oracle polls two independent exchange rates and derives the
// ETH/ILS cross rate. Each constituent has a primary and a fallback source;
// the poller itself is a two-state machine that never erases the last good
// sample on failure.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// RateSource produces one exchange rate. Implementations must validate
// their own payloads: a returned rate is positive and finite.
type RateSource interface {
	Name() string
	Rate(ctx context.Context) (float64, error)
}

// Tiered tries a primary source, then a fallback. Failure of both yields
// "unavailable" for the constituent without crashing the poller.
type Tiered struct {
	Primary  RateSource
	Fallback RateSource
}

func (t Tiered) Name() string {
	return t.Primary.Name() + "+" + t.Fallback.Name()
}

func (t Tiered) Rate(ctx context.Context) (float64, error) {
	v, err := t.Primary.Rate(ctx)
	if err == nil {
		return v, nil
	}
	v, err2 := t.Fallback.Rate(ctx)
	if err2 == nil {
		return v, nil
	}
	return 0, fmt.Errorf("%s unavailable (primary: %v): %w", t.Name(), err, err2)
}

// FeedReader is the chain client's Chainlink aggregator surface.
type FeedReader interface {
	EthUsdFeed(ctx context.Context) (float64, error)
}

// ChainlinkSource reads ETH/USD from the on-chain price feed.
type ChainlinkSource struct {
	Feed FeedReader
}

func (s ChainlinkSource) Name() string { return "chainlink" }

func (s ChainlinkSource) Rate(ctx context.Context) (float64, error) {
	v, err := s.Feed.EthUsdFeed(ctx)
	if err != nil {
		return 0, err
	}
	return validated("chainlink", v)
}

// httpJSON fetches and decodes one JSON payload.
func httpJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// CoingeckoSource reads ETH/USD from the public REST API, the fallback when
// the on-chain feed is unavailable.
type CoingeckoSource struct {
	URL    string
	Client *http.Client
}

func (s CoingeckoSource) Name() string { return "coingecko" }

func (s CoingeckoSource) Rate(ctx context.Context) (float64, error) {
	var payload struct {
		Ethereum struct {
			USD float64 `json:"usd"`
		} `json:"ethereum"`
	}
	if err := httpJSON(ctx, s.httpClient(), s.URL, &payload); err != nil {
		return 0, err
	}
	return validated("coingecko", payload.Ethereum.USD)
}

func (s CoingeckoSource) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return defaultHTTPClient
}

// FxSource reads USD/ILS from a rates API; both the primary and the
// fallback endpoint share the `{"rates":{"ILS":…}}` response shape.
type FxSource struct {
	SourceName string
	URL        string
	Client     *http.Client
}

func (s FxSource) Name() string { return s.SourceName }

func (s FxSource) Rate(ctx context.Context) (float64, error) {
	var payload struct {
		Rates struct {
			ILS float64 `json:"ILS"`
		} `json:"rates"`
	}
	client := s.Client
	if client == nil {
		client = defaultHTTPClient
	}
	if err := httpJSON(ctx, client, s.URL, &payload); err != nil {
		return 0, err
	}
	return validated(s.SourceName, payload.Rates.ILS)
}

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

func validated(source string, v float64) (float64, error) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s returned invalid rate %v", source, v)
	}
	return v, nil
}
