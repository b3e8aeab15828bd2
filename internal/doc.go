// Package internal contains the gateway's implementation packages.
//
// # Package Organization
//
//   - config: Viper-backed configuration with defaults and validation
//   - content: Article and page types, the Provider interface and the static fallback
//   - correlation: Request and correlation ids with a request-scoped logger
//   - errors: The GatewayError type, its code registry and normalization
//   - http: Route table, API versioning, legacy redirects and server lifecycle
//   - logging: Structured logging on log/slog
//   - metrics: Prometheus collectors for requests and content providers
//   - middleware: The ordered HTTP middleware stack
//   - providers: Content provider selection and the cms, file and postgres providers
//   - response: The single JSON envelope writer
//   - server: Gateway assembly, handlers and shutdown
//   - urlnorm: Serverless mount prefix stripping
//   - validation: Slug, name, URL and path validation
//   - version: Build metadata
//   - watcher: Debounced fsnotify watching used for content hot reload
//
// # Request Flow
//
// A request passes through URL normalization (serverless only), correlation,
// response tracking, panic recovery, access logging, metrics, CORS and
// security headers before chi dispatches it. Handlers return errors instead
// of writing them; http.Handle normalizes every error into one envelope.
package internal
