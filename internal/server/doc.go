// Package server holds the shared runtime state for the MCP server.
//
// ServerContext carries the pieces every tool handler needs: per-account
// calendar clients, the token provider that backs them, the conflict
// detection tuning, and the write gate that keeps mutating tools disabled
// unless explicitly opted in. Handlers receive a *ServerContext at
// registration time and use it to look up or lazily create clients.
//
// OAuthHTTPServer wraps the MCP server for the streamable-http transport,
// adding RFC 9728 resource metadata and Google Bearer token validation in
// front of the /mcp endpoint. The stdio transport bypasses it entirely and
// authenticates with on-disk token files instead.
package server
