// Package api provides the HTTP REST API and WebSocket server for Gray Logic
// Integrations.
//
// It exposes the setup flows, the configured entries with their live state,
// and a WebSocket feed of state changes to user interfaces and scripts.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
