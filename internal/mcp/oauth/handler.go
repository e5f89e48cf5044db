package oauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const defaultUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size
	Burst int

	// TrustProxy controls whether X-Forwarded-For and X-Real-IP are trusted
	TrustProxy bool
}

// Config holds the OAuth handler configuration
type Config struct {
	// Resource is the MCP server resource identifier (RFC 8707), normally
	// the base URL of the server.
	Resource string

	// AuthorizationServers lists the external authorization servers that
	// issue tokens accepted by this resource.
	AuthorizationServers []string

	// SupportedScopes are the Google API scopes this resource understands.
	SupportedScopes []string

	// RateLimit tunes per-IP request limiting. A zero Rate disables it.
	RateLimit RateLimitConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// Handler validates incoming Bearer tokens and serves protected resource
// metadata. It does not issue tokens; that is the authorization server's job.
type Handler struct {
	config      Config
	store       *Store
	rateLimiter *RateLimiter
	logger      *slog.Logger

	// userInfoEndpoint is overridable in tests.
	userInfoEndpoint string
}

// NewHandler creates a handler over the given store.
func NewHandler(config Config, store *Store) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *RateLimiter
	if config.RateLimit.Rate > 0 {
		limiter = NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, config.RateLimit.TrustProxy)
	}

	return &Handler{
		config:           config,
		store:            store,
		rateLimiter:      limiter,
		logger:           logger,
		userInfoEndpoint: defaultUserInfoEndpoint,
	}
}

// Store exposes the handler's token store.
func (h *Handler) Store() *Store {
	return h.store
}

// RegisterRoutes registers the well-known metadata endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /.well-known/oauth-protected-resource", h.RateLimitMiddleware(http.HandlerFunc(h.handleProtectedResourceMetadata)))
}

// handleProtectedResourceMetadata serves RFC 9728 metadata so clients can
// discover which authorization servers to use.
func (h *Handler) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   h.config.AuthorizationServers,
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("failed to encode resource metadata", "error", err)
	}
}

// writeError writes an OAuth error response with the given status.
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
