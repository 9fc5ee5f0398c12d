// Package event defines the envelope pushed to subscribers and its wire forms.
//
// An Envelope is a tagged variant: KindPriceUpdate carries a price.Quote,
// KindError carries a failure description. Use PriceUpdate or Failure to build
// one; the zero value is not a valid envelope.
//
// JSON body (one per envelope):
//
//	{"type":"price_update","message":"...","timestamp":"2024-05-01T12:00:00.000Z","data":{...}}
//	{"type":"error","message":"...","timestamp":"2024-05-01T12:00:00.000Z","error":"..."}
//
// Encode serializes an envelope once into a Frame; Frame.WriteTo emits the
// Server-Sent Events record:
//
//	id: <n>
//	data: <json>
//	<blank line>
package event
