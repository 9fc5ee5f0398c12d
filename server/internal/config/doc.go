// Package config loads the pricestream server configuration.
//
// Config fields:
//   - Server.Port              — HTTP listen port (default 3000, env PORT)
//   - Server.StaticDir         — directory of pre-built UI assets (default "public")
//   - Server.WriteTimeout      — deadline for one push to one client (default 5s)
//   - Server.KeepAliveInterval — SSE comment ping period, 0 disables (default 15s)
//   - Source.Endpoint/Symbol   — upstream 24h ticker URL and symbol (Binance ETHUSDT)
//   - Source.Timeout           — outbound request timeout (default 5s)
//   - Refresh.Interval         — broadcast period (default 10s)
//   - Log.Level                — debug | info | warn | error (default info)
//
// Load(path) applies defaults, then the YAML file (if path is non-empty), then
// environment overrides, then validates. LoadDotEnv populates the process
// environment from a .env file before Load runs.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on change.
package config
