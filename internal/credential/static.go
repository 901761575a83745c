package credential

import (
	"context"

	"golang.org/x/oauth2"
)

// Static serves backends that do not use OAuth (local folders, S3 with
// ambient AWS credentials). It always returns the same token.
type Static struct {
	Token *oauth2.Token
}

// NewStatic returns credentials with a placeholder token
func NewStatic() Static {
	return Static{Token: &oauth2.Token{AccessToken: "static", TokenType: "none"}}
}

// TokenSilent returns the fixed token
func (s Static) TokenSilent(ctx context.Context) (*oauth2.Token, error) {
	return s.Token, nil
}

// Login is a no-op
func (s Static) Login(ctx context.Context) (*oauth2.Token, error) {
	return s.Token, nil
}
