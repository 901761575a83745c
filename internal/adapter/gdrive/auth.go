package gdrive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/Ning0612/Comicshelf/internal/credential"
)

// DefaultTokenFile is the default file name for the stored OAuth token
const DefaultTokenFile = "gdrive-token.json"

// OAuthConfig returns the read-only Drive OAuth2 config
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{drive.DriveReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// NewCredentials returns Drive credentials persisted at tokenPath. Login
// prints the consent URL and reads the pasted authorization code from stdin.
func NewCredentials(clientID, clientSecret, tokenPath string) *credential.OAuth {
	return credential.NewOAuth("gdrive",
		OAuthConfig(clientID, clientSecret),
		credential.FileStore{Path: tokenPath},
		PasteCodeFlow(os.Stdin, os.Stdout))
}

// PasteCodeFlow returns a login flow that asks the user to open the
// consent URL and paste back the authorization code
func PasteCodeFlow(in io.Reader, out io.Writer) credential.LoginFlow {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		state, err := credential.RandomState()
		if err != nil {
			return nil, fmt.Errorf("failed to generate state: %w", err)
		}

		authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
		fmt.Fprintf(out, "\nTo let comicshelf read your Google Drive:\n\n")
		fmt.Fprintf(out, "1. Visit this URL:\n   %s\n\n", authURL)
		fmt.Fprintf(out, "2. Sign in and authorize the application\n\n")
		fmt.Fprintf(out, "Enter authorization code: ")

		code, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && code == "" {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("empty authorization code")
		}

		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange code for token: %w", err)
		}
		fmt.Fprintln(out, "\nAuthentication successful! Token saved.")
		return token, nil
	}
}

// Connect builds an adapter whose HTTP client refreshes token through cfg
func Connect(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, opts ...Option) (*Adapter, error) {
	return New(ctx, cfg.Client(ctx, token), opts...)
}
