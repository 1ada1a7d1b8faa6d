// Package http is the transport used to execute specs.
//
// Transport is the capability the executor depends on; Client is the default
// implementation built on resty with:
//   - a base URL that relative spec paths are joined onto
//   - configurable timeouts and redirect handling
//   - default headers for every request
//   - TLS verification and proxy settings
//   - an optional client-side rate limit
//
// Request bodies are JSON encoded. TLS, connection pooling and any retry
// policy belong to the transport; the client sends every request once.
package http
