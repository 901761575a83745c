package adapter

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/adapter/gdrive"
	"github.com/Ning0612/Comicshelf/internal/adapter/local"
	"github.com/Ning0612/Comicshelf/internal/adapter/onedrive"
	"github.com/Ning0612/Comicshelf/internal/adapter/s3"
	"github.com/Ning0612/Comicshelf/internal/config"
	"github.com/Ning0612/Comicshelf/internal/credential"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/retry"
)

// Compile-time interface checks
var (
	_ Provider    = (*gdrive.Adapter)(nil)
	_ Provider    = (*onedrive.Adapter)(nil)
	_ Provider    = (*s3.Adapter)(nil)
	_ Provider    = (*local.Adapter)(nil)
	_ Credentials = (*credential.OAuth)(nil)
	_ Credentials = credential.Static{}
)

// Backend pairs the credentials of a provider with the function that
// connects to it once a token is available
type Backend struct {
	Type        domain.ProviderType
	Credentials Credentials
	Connect     Connector
}

// Open selects the backend for t from configuration
func Open(cfg *config.Config, t domain.ProviderType) (*Backend, error) {
	if err := cfg.ValidateProvider(t); err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy()
	if cfg.Sync.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Sync.MaxAttempts
	}
	p := cfg.Providers

	switch t {
	case domain.ProviderGDrive:
		creds := gdrive.NewCredentials(p.GDrive.ClientID, p.GDrive.ClientSecret, p.GDrive.TokenPath)
		return &Backend{
			Type:        t,
			Credentials: creds,
			Connect: func(ctx context.Context, token *oauth2.Token) (Provider, error) {
				a, err := gdrive.Connect(ctx, creds.Config(), token, gdrive.WithRetryPolicy(policy))
				if err != nil {
					return nil, err
				}
				return a, nil
			},
		}, nil

	case domain.ProviderOneDrive:
		creds := onedrive.NewCredentials(p.OneDrive.ClientID, p.OneDrive.Tenant, p.OneDrive.TokenPath)
		return &Backend{
			Type:        t,
			Credentials: creds,
			Connect: func(ctx context.Context, token *oauth2.Token) (Provider, error) {
				return onedrive.Connect(ctx, creds.Config(), token, onedrive.WithRetryPolicy(policy)), nil
			},
		}, nil

	case domain.ProviderS3:
		settings := s3.Settings{
			Bucket:          p.S3.Bucket,
			Region:          p.S3.Region,
			Prefix:          p.S3.Prefix,
			Endpoint:        p.S3.Endpoint,
			Profile:         p.S3.Profile,
			AccessKeyID:     p.S3.AccessKeyID,
			SecretAccessKey: p.S3.SecretAccessKey,
		}
		return &Backend{
			Type:        t,
			Credentials: credential.NewStatic(),
			Connect: func(ctx context.Context, _ *oauth2.Token) (Provider, error) {
				a, err := s3.Connect(ctx, settings, policy)
				if err != nil {
					return nil, err
				}
				return a, nil
			},
		}, nil

	case domain.ProviderLocal:
		root := p.Local.Root
		return &Backend{
			Type:        t,
			Credentials: credential.NewStatic(),
			Connect: func(ctx context.Context, _ *oauth2.Token) (Provider, error) {
				a, err := local.New(root)
				if err != nil {
					return nil, err
				}
				return a, nil
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrConfigInvalid, t)
}

// ResolveFolder walks a slash-separated folder path from the provider root
// by name and returns the ID of the last folder. An empty path is the root.
func ResolveFolder(ctx context.Context, p Provider, folderPath string) (string, error) {
	id := ""
	for _, name := range strings.Split(strings.Trim(folderPath, "/"), "/") {
		if name == "" {
			continue
		}
		children, err := p.ListChildren(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", folderPath, err)
		}

		next := ""
		for _, c := range children {
			if c.IsFolder && c.Name == name {
				next = c.ID
				break
			}
		}
		if next == "" {
			return "", fmt.Errorf("resolve %s: folder %q: %w", folderPath, name, domain.ErrNotFound)
		}
		id = next
	}
	return id, nil
}
