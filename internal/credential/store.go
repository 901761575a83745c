// Package credential stores and refreshes provider OAuth tokens.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// storedToken is the on-disk token shape
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// FileStore keeps one token as JSON at Path with 0600 permissions
type FileStore struct {
	Path string
}

// Load reads the token. A missing file is domain.ErrNotAuthenticated.
func (s FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	var t storedToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.Path, err)
	}
	if t.AccessToken == "" && t.RefreshToken == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}, nil
}

// Save writes the token atomically using temp file + rename
func (s FileStore) Save(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(storedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.Path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp token file: %w", err)
	}
	if err := os.Rename(tempPath, s.Path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename token file: %w", err)
	}
	return nil
}

// Delete forgets the token
func (s FileStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
