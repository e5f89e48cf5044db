package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/calguard/calguard/internal/logging"
)

// contextKey is the type for context keys
type contextKey string

const (
	// userContextKey is the key for storing the user info in the request context
	userContextKey contextKey = "oauth_user"

	// tokenContextKey is the key for storing the Google token in the request context
	tokenContextKey contextKey = "google_token"
)

// ValidateGoogleToken is middleware that validates Google OAuth tokens.
// It validates the token with Google's userinfo endpoint and stores user info
// in the request context.
func (h *Handler) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
				h.config.Resource,
			))
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.Resource,
			))
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		token := &oauth2.Token{
			AccessToken: parts[1],
			TokenType:   "Bearer",
		}

		userInfo, err := h.getUserInfoFromGoogle(r.Context(), token)
		if err != nil {
			errorDesc := getActionableErrorMessage(err)
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="%s"`,
				h.config.Resource,
				errorDesc,
			))
			h.writeUnauthorizedError(w, "invalid_token", errorDesc)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userInfo)
		ctx = context.WithValue(ctx, tokenContextKey, token)

		// Save the token keyed by email so calendar clients can use it for
		// Google API calls on this user's behalf.
		if err := h.store.SaveGoogleToken(userInfo.Email, token); err != nil {
			h.logger.Warn("failed to save Google token",
				logging.UserHash(userInfo.Email),
				logging.Err(err))
		}
		if err := h.store.SaveGoogleUserInfo(userInfo.Email, userInfo); err != nil {
			h.logger.Warn("failed to save user info",
				logging.UserHash(userInfo.Email),
				logging.Err(err))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateGoogleTokenFunc is a function-based variant of ValidateGoogleToken
func (h *Handler) ValidateGoogleTokenFunc(next http.HandlerFunc) http.HandlerFunc {
	return h.ValidateGoogleToken(next).ServeHTTP
}

// getUserInfoFromGoogle validates a token by calling Google's userinfo endpoint
func (h *Handler) getUserInfoFromGoogle(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.userInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}

// GetUserFromContext retrieves the Google user info from the request context
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	userInfo, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return userInfo, ok
}

// ContextWithUserInfo returns a context carrying the given user info.
// The middleware does this automatically for HTTP requests; this helper
// exists for callers that inject an identity themselves.
func ContextWithUserInfo(ctx context.Context, userInfo *GoogleUserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}

// GetGoogleTokenFromContext retrieves the Google token from the request context
func GetGoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// writeUnauthorizedError writes an OAuth error response with 401 status
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	h.writeError(w, errorCode, description, http.StatusUnauthorized)
}

// getActionableErrorMessage converts technical errors into user-facing,
// actionable messages.
func getActionableErrorMessage(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		return "Google token is invalid or expired. Please re-authenticate through your MCP client to continue."
	}

	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return "Access denied by Google. Please ensure your token has the required scopes and re-authenticate through your MCP client."
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dial") {
		return "Unable to verify token with Google due to network issues. Please try again in a moment."
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return "Google API rate limit exceeded. Please wait a moment and try again."
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return "Google authentication service is temporarily unavailable. Please try again in a few minutes."
	}

	return fmt.Sprintf("Token validation failed: %v. Please re-authenticate through your MCP client.", err)
}
