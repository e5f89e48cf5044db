package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider abstracts where OAuth tokens come from. The stdio transport
// reads them from per-account files on disk; the HTTP transport resolves
// them from validated Bearer tokens.
type TokenProvider interface {
	// GetTokenForAccount returns an OAuth token for the account.
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount reports whether a token is available for the
	// account without fetching it.
	HasTokenForAccount(account string) bool
}

// FileTokenProvider resolves tokens from the per-account token files written
// by the auth-code flow.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount loads the account's token from disk, refreshing it
// through the token source when expired.
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}

	return token, nil
}

// HasTokenForAccount reports whether a token file exists for the account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}
