// Package pricefeed fetches batched spot prices from an external quote
// source shaped like the CryptoCompare pricemulti endpoint.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSourceUnavailable indicates the quote source could not be reached or
// answered with a non-success status
var ErrSourceUnavailable = errors.New("price source unavailable")

// ErrMalformedResponse indicates the quote source answered with a payload
// that cannot be parsed into the expected symbol-to-price shape
var ErrMalformedResponse = errors.New("malformed price response")

const defaultTimeout = 30 * time.Second

// Client performs batched price lookups against the external source.
// It carries no retry policy: a failed lookup is reported to the caller and
// the next scheduled cycle retries from scratch.
type Client struct {
	baseURL       string
	apiKey        string
	quoteCurrency string
	httpClient    *http.Client
}

// NewClient creates a new price feed client
func NewClient(baseURL, apiKey, quoteCurrency string) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		quoteCurrency: quoteCurrency,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
}

// FetchPrices performs one batched request for the given ticker symbols and
// returns a mapping from symbol to price in the configured quote currency.
// A symbol absent from the response is simply absent from the returned map;
// the caller decides what a missing quote means.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to fetch")
	}

	query := url.Values{}
	query.Set("fsyms", strings.Join(symbols, ","))
	query.Set("tsyms", c.quoteCurrency)
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	// Response shape: {"BTC": {"USD": 105.2}, "ETH": {"USD": 3201.5}}
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	prices := make(map[string]decimal.Decimal, len(raw))
	for symbol, quotes := range raw {
		quoted, ok := quotes[c.quoteCurrency]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(quoted.String())
		if err != nil {
			return nil, fmt.Errorf("%w: price for %s: %v", ErrMalformedResponse, symbol, err)
		}
		prices[symbol] = price
	}

	return prices, nil
}
