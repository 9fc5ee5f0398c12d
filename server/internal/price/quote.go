package price

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// USDToEUR is the static conversion factor used to derive EUR prices.
var USDToEUR = decimal.RequireFromString("0.85")

// Quote is one normalized price observation. It is built fresh on every fetch
// and never mutated afterwards.
type Quote struct {
	USD          decimal.Decimal
	EUR          decimal.Decimal
	Change24h    decimal.Decimal // percent
	Volume24hUSD decimal.Decimal
	MarketCap    *decimal.Decimal // nil when unknown
}

// NewQuote builds a Quote from the raw upstream values. EUR and USD volume are
// derived from lastPrice.
func NewQuote(lastPrice, changePct, baseVolume decimal.Decimal) Quote {
	return Quote{
		USD:          lastPrice,
		EUR:          lastPrice.Mul(USDToEUR),
		Change24h:    changePct,
		Volume24hUSD: baseVolume.Mul(lastPrice),
	}
}

// Equal reports whether q and o carry the same values.
func (q Quote) Equal(o Quote) bool {
	if (q.MarketCap == nil) != (o.MarketCap == nil) {
		return false
	}
	if q.MarketCap != nil && !q.MarketCap.Equal(*o.MarketCap) {
		return false
	}
	return q.USD.Equal(o.USD) &&
		q.EUR.Equal(o.EUR) &&
		q.Change24h.Equal(o.Change24h) &&
		q.Volume24hUSD.Equal(o.Volume24hUSD)
}

type quoteJSON struct {
	USD          json.Number  `json:"usd"`
	EUR          json.Number  `json:"eur"`
	Change24h    json.Number  `json:"change_24h"`
	Volume24hUSD json.Number  `json:"volume_24h"`
	MarketCap    *json.Number `json:"market_cap"`
}

// MarshalJSON writes the decimal fields as JSON numbers, and market_cap as
// null when it is unknown.
func (q Quote) MarshalJSON() ([]byte, error) {
	out := quoteJSON{
		USD:          json.Number(q.USD.String()),
		EUR:          json.Number(q.EUR.String()),
		Change24h:    json.Number(q.Change24h.String()),
		Volume24hUSD: json.Number(q.Volume24hUSD.String()),
	}
	if q.MarketCap != nil {
		mc := json.Number(q.MarketCap.String())
		out.MarketCap = &mc
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. It is used by clients and
// tests that read envelopes back off the wire.
func (q *Quote) UnmarshalJSON(b []byte) error {
	var in quoteJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	fields := []struct {
		dst *decimal.Decimal
		src json.Number
		key string
	}{
		{&q.USD, in.USD, "usd"},
		{&q.EUR, in.EUR, "eur"},
		{&q.Change24h, in.Change24h, "change_24h"},
		{&q.Volume24hUSD, in.Volume24hUSD, "volume_24h"},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return fmt.Errorf("quote: %s: %w", f.key, err)
		}
		*f.dst = d
	}
	q.MarketCap = nil
	if in.MarketCap != nil {
		d, err := decimal.NewFromString(in.MarketCap.String())
		if err != nil {
			return fmt.Errorf("quote: market_cap: %w", err)
		}
		q.MarketCap = &d
	}
	return nil
}
