package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider implements google.TokenProvider using the OAuth store.
// This lets calendar clients use tokens obtained through MCP OAuth
// authentication.
type TokenProvider struct {
	store *Store
}

// NewTokenProvider creates a new OAuth-based token provider
func NewTokenProvider(store *Store) *TokenProvider {
	return &TokenProvider{
		store: store,
	}
}

// GetTokenForAccount retrieves a Google OAuth token from the store.
// An authenticated user in the context takes precedence over the account
// name; the account name is the fallback for lookups outside a request.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	if userInfo, ok := GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		token, err := p.store.GetGoogleToken(userInfo.Email)
		if err == nil {
			return token, nil
		}
	}

	token, err := p.store.GetGoogleToken(account)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found for account %s. Please authenticate with Google through your MCP client", account)
	}
	return token, nil
}

// HasTokenForAccount checks if a token exists in the store for the specified
// account. Without a request context it can only check by account name.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetGoogleToken(account)
	return err == nil
}
