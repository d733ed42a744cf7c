// Package api provides the HTTP surface of the substrate: REST routes for
// every tool operation plus the mounted MCP handler.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Namespace scopes every graph operation issued through this server.
	Namespace string
}
