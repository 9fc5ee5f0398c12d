// Package price fetches the current ETH quote from an upstream market-data API.
//
// Source is the interface the hub depends on. Binance is the production
// implementation: one GET to the 24h ticker endpoint per Fetch call, no retries.
// A failed call (transport error, non-2xx status, missing or malformed fields)
// always returns a *FetchError and a zero Quote, never a partial quote.
//
// EUR values are derived with the fixed USDToEUR factor rather than a live FX
// rate. The upstream does not report market cap, so Quote.MarketCap is nil.
package price
