package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/pricestream/pricestream/server/internal/config"
)

// Source produces one Quote per call.
type Source interface {
	Fetch(ctx context.Context) (Quote, error)
}

// FetchError is the single failure type returned by Source implementations.
// Status is the upstream HTTP status when one was received, otherwise 0.
type FetchError struct {
	Symbol string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("price: fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ticker24h is the subset of the Binance /api/v3/ticker/24hr response we read.
// Numeric fields arrive as strings.
type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
}

// Binance fetches the 24h rolling ticker for one symbol.
type Binance struct {
	endpoint string
	symbol   string
	client   *resty.Client
}

// NewBinance returns a Binance source for the given configuration. The HTTP
// client is built once and reused across Fetch calls.
func NewBinance(cfg config.SourceConfig) *Binance {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Binance{
		endpoint: cfg.Endpoint,
		symbol:   cfg.Symbol,
		client:   client,
	}
}

// Fetch performs one GET against the ticker endpoint and normalizes the result.
func (b *Binance) Fetch(ctx context.Context) (Quote, error) {
	slog.Debug("price: requesting ticker", "endpoint", b.endpoint, "symbol", b.symbol)

	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", b.symbol).
		Get(b.endpoint)
	if err != nil {
		return Quote{}, b.fail(0, fmt.Errorf("http get: %w", err))
	}
	if !resp.IsSuccess() {
		return Quote{}, b.fail(resp.StatusCode(), fmt.Errorf("HTTP error! status: %d", resp.StatusCode()))
	}

	var t ticker24h
	if err := json.Unmarshal(resp.Body(), &t); err != nil {
		return Quote{}, b.fail(resp.StatusCode(), fmt.Errorf("decode body: %w", err))
	}
	q, err := t.quote()
	if err != nil {
		return Quote{}, b.fail(resp.StatusCode(), err)
	}
	return q, nil
}

func (b *Binance) fail(status int, err error) *FetchError {
	return &FetchError{Symbol: b.symbol, Status: status, Err: err}
}

var errNoSymbol = errors.New("response carries no symbol")

func (t ticker24h) quote() (Quote, error) {
	if t.Symbol == "" {
		return Quote{}, errNoSymbol
	}
	last, err := parseField("lastPrice", t.LastPrice)
	if err != nil {
		return Quote{}, err
	}
	change, err := parseField("priceChangePercent", t.PriceChangePercent)
	if err != nil {
		return Quote{}, err
	}
	volume, err := parseField("volume", t.Volume)
	if err != nil {
		return Quote{}, err
	}
	return NewQuote(last, change, volume), nil
}

func parseField(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("field %s missing", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %s: %w", name, err)
	}
	return d, nil
}

// IsHTTPStatus reports whether err is a FetchError carrying the given status.
func IsHTTPStatus(err error, status int) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == status
}
