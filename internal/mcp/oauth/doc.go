// Package oauth implements the resource-server side of MCP OAuth for the
// HTTP transport: Bearer token validation against Google's userinfo
// endpoint, OAuth 2.0 Protected Resource Metadata (RFC 9728), per-IP rate
// limiting, and a token store that maps authenticated users to their Google
// tokens so calendar clients can act on their behalf.
//
// Token issuance and refresh are handled by the external authorization
// server; this package only consumes the tokens it issues. Token persistence
// is delegated to the github.com/giantswarm/mcp-oauth storage layer.
package oauth
