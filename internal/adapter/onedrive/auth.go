package onedrive

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/Ning0612/Comicshelf/internal/credential"
)

const (
	// DefaultTenant accepts both personal and work accounts
	DefaultTenant = "common"
	// DefaultTokenFile is the default file name for the stored OAuth token
	DefaultTokenFile = "onedrive-token.json"
)

// Scopes requested at sign-in
var Scopes = []string{"Files.Read", "User.Read", "offline_access"}

// OAuthConfig returns the public-client config for tenant
func OAuthConfig(clientID, tenant string) *oauth2.Config {
	if tenant == "" {
		tenant = DefaultTenant
	}
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   Scopes,
		Endpoint: microsoft.AzureADEndpoint(tenant),
	}
}

// NewCredentials returns OneDrive credentials persisted at tokenPath.
// Login runs the device-code flow, printing instructions to stdout.
func NewCredentials(clientID, tenant, tokenPath string) *credential.OAuth {
	return credential.NewOAuth("onedrive",
		OAuthConfig(clientID, tenant),
		credential.FileStore{Path: tokenPath},
		DeviceCodeFlow(os.Stdout))
}

// DeviceCodeFlow returns a login flow that shows a user code and polls
// the token endpoint until the user approves it elsewhere
func DeviceCodeFlow(out io.Writer) credential.LoginFlow {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		auth, err := cfg.DeviceAuth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to start device login: %w", err)
		}

		fmt.Fprintf(out, "\nTo let comicshelf read your OneDrive:\n\n")
		fmt.Fprintf(out, "1. Visit %s\n", auth.VerificationURI)
		fmt.Fprintf(out, "2. Enter the code %s\n\n", auth.UserCode)
		fmt.Fprintf(out, "Waiting for approval...\n")

		token, err := cfg.DeviceAccessToken(ctx, auth)
		if err != nil {
			return nil, fmt.Errorf("device login failed: %w", err)
		}
		fmt.Fprintln(out, "\nAuthentication successful! Token saved.")
		return token, nil
	}
}

// Connect builds an adapter whose HTTP client refreshes token through cfg
func Connect(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, opts ...Option) *Adapter {
	return New(cfg.Client(ctx, token), opts...)
}
