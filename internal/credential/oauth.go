package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
)

// LoginFlow runs an interactive authorization against cfg
type LoginFlow func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// OAuth serves tokens from a FileStore, refreshing them through the
// provider's token endpoint when they expire
type OAuth struct {
	provider string
	config   *oauth2.Config
	store    FileStore
	login    LoginFlow
}

// NewOAuth creates credentials for provider
func NewOAuth(provider string, cfg *oauth2.Config, store FileStore, login LoginFlow) *OAuth {
	return &OAuth{provider: provider, config: cfg, store: store, login: login}
}

// Config returns the OAuth2 config, used to build authenticated clients
func (o *OAuth) Config() *oauth2.Config {
	return o.config
}

// Store returns the token store
func (o *OAuth) Store() FileStore {
	return o.store
}

// TokenSilent returns the stored token without user interaction. An
// expired token is refreshed and the refreshed token persisted.
func (o *OAuth) TokenSilent(ctx context.Context) (*oauth2.Token, error) {
	token, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if token.Valid() {
		return token, nil
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%s token expired: %w", o.provider, domain.ErrNotAuthenticated)
	}

	fresh, err := o.config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh %s token: %w", o.provider, err)
	}
	if fresh.AccessToken != token.AccessToken {
		if err := o.store.Save(fresh); err != nil {
			logger.Get().Warn("failed to save refreshed token", "provider", o.provider, "error", err)
		}
	}
	return fresh, nil
}

// Login runs the interactive flow and persists the result
func (o *OAuth) Login(ctx context.Context) (*oauth2.Token, error) {
	if o.login == nil {
		return nil, fmt.Errorf("%s has no interactive login", o.provider)
	}
	token, err := o.login(ctx, o.config)
	if err != nil {
		return nil, err
	}
	if err := o.store.Save(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	logger.Get().Info("signed in", "provider", o.provider, "token_path", o.store.Path)
	return token, nil
}

// Logout deletes the stored token
func (o *OAuth) Logout() error {
	return o.store.Delete()
}

// RandomState returns a URL-safe CSRF state value
func RandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
