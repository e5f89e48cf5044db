package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/google"
	"github.com/calguard/calguard/internal/mcp/oauth"
)

// OAuthHTTPServer wraps an MCP server with OAuth Bearer authentication.
// It implements RFC 9728 Protected Resource Metadata so MCP clients can
// discover the authorization server, and validates every MCP request's token
// against Google before dispatch.
type OAuthHTTPServer struct {
	mcpServer     *mcpserver.MCPServer
	oauthHandler  *oauth.Handler
	httpServer    *http.Server
	healthChecker *HealthChecker
}

// NewOAuthHTTPServer creates a new OAuth-enabled HTTP server for MCP.
// The store decides where validated tokens are kept; pass the same store's
// token provider into the server context so calendar clients can reuse them.
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, baseURL string, store *oauth.Store) (*OAuthHTTPServer, error) {
	if err := validateHTTPSRequirement(baseURL); err != nil {
		return nil, err
	}

	oauthHandler := oauth.NewHandler(oauth.Config{
		Resource:             baseURL,
		AuthorizationServers: []string{"https://accounts.google.com"},
		SupportedScopes:      google.DefaultOAuthScopes,
		RateLimit: oauth.RateLimitConfig{
			Rate:  10,
			Burst: 20,
		},
	}, store)

	return &OAuthHTTPServer{
		mcpServer:    mcpServer,
		oauthHandler: oauthHandler,
	}, nil
}

// SetHealthChecker registers liveness and readiness endpoints on the server.
// Must be called before Start.
func (s *OAuthHTTPServer) SetHealthChecker(h *HealthChecker) {
	s.healthChecker = h
}

// Start starts the OAuth-enabled HTTP server
func (s *OAuthHTTPServer) Start(addr string) error {
	mux := http.NewServeMux()

	// Protected Resource Metadata endpoint (RFC 9728)
	s.oauthHandler.RegisterRoutes(mux)

	// Health endpoints stay unauthenticated so orchestrators can probe them
	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)
	mux.Handle("/mcp", s.oauthHandler.RateLimitMiddleware(
		s.oauthHandler.ValidateGoogleToken(streamable)))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// OAuthHandler returns the OAuth handler for testing or direct access
func (s *OAuthHTTPServer) OAuthHandler() *oauth.Handler {
	return s.oauthHandler
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance.
// HTTP is allowed only for loopback addresses.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
