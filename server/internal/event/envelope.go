package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pricestream/pricestream/server/internal/price"
)

// Kind discriminates the envelope variants.
type Kind string

const (
	KindPriceUpdate Kind = "price_update"
	KindError       Kind = "error"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	msgPriceUpdate = "Current Ethereum price"
	msgError       = "Error fetching Ethereum data"
)

// Envelope is one identified, typed update. Exactly one of Quote (for
// KindPriceUpdate) or Detail (for KindError) is meaningful.
type Envelope struct {
	ID        uint64
	Kind      Kind
	Message   string
	Timestamp time.Time
	Quote     *price.Quote
	Detail    string
}

// PriceUpdate builds a price_update envelope.
func PriceUpdate(id uint64, q price.Quote, at time.Time) Envelope {
	return Envelope{
		ID:        id,
		Kind:      KindPriceUpdate,
		Message:   msgPriceUpdate,
		Timestamp: at.UTC(),
		Quote:     &q,
	}
}

// Failure builds an error envelope whose detail is err's message.
func Failure(id uint64, err error, at time.Time) Envelope {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Envelope{
		ID:        id,
		Kind:      KindError,
		Message:   msgError,
		Timestamp: at.UTC(),
		Detail:    detail,
	}
}

// FromFetch picks the variant for the outcome of one fetch.
func FromFetch(id uint64, q price.Quote, err error, at time.Time) Envelope {
	if err != nil {
		return Failure(id, err, at)
	}
	return PriceUpdate(id, q, at)
}

// IsError reports whether e is the error variant.
func (e Envelope) IsError() bool { return e.Kind == KindError }

type envelopeJSON struct {
	Type      Kind         `json:"type"`
	Message   string       `json:"message"`
	Timestamp string       `json:"timestamp"`
	Data      *price.Quote `json:"data,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// MarshalJSON writes the wire body. The id is not part of it; it travels on the
// SSE id line.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := envelopeJSON{
		Type:      e.Kind,
		Message:   e.Message,
		Timestamp: e.Timestamp.UTC().Format(TimestampLayout),
	}
	switch e.Kind {
	case KindPriceUpdate:
		if e.Quote == nil {
			return nil, fmt.Errorf("event: envelope %d: price_update without quote", e.ID)
		}
		out.Data = e.Quote
	case KindError:
		out.Error = e.Detail
	default:
		return nil, fmt.Errorf("event: envelope %d: unknown kind %q", e.ID, e.Kind)
	}
	return json.Marshal(out)
}
