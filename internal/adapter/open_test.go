package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/Ning0612/Comicshelf/internal/config"
	"github.com/Ning0612/Comicshelf/internal/credential"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/testutil"
)

func TestOpen_Local(t *testing.T) {
	root := t.TempDir()
	testutil.CreateTestFile(t, root, "a.cbz", []byte("data"))

	cfg := config.Default()
	cfg.Providers.Local.Root = root

	backend, err := Open(cfg, domain.ProviderLocal)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := backend.Credentials.(credential.Static); !ok {
		t.Errorf("Credentials = %T, want credential.Static", backend.Credentials)
	}

	ctx := context.Background()
	token, err := backend.Credentials.TokenSilent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p, err := backend.Connect(ctx, token)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	nodes, err := p.ListChildren(ctx, "")
	if err != nil || len(nodes) != 1 || nodes[0].Name != "a.cbz" {
		t.Errorf("ListChildren() = %v, %v", nodes, err)
	}
}

func TestOpen_LocalMissingRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Local.Root = t.TempDir() + "/missing"

	backend, err := Open(cfg, domain.ProviderLocal)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	p, err := backend.Connect(context.Background(), nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Connect() error = %v, want ErrNotFound", err)
	}
	if p != nil {
		t.Errorf("Connect() provider = %v, want nil interface", p)
	}
}

func TestOpen_NotConfigured(t *testing.T) {
	cfg := config.Default()
	for _, pt := range []domain.ProviderType{domain.ProviderGDrive, domain.ProviderOneDrive, domain.ProviderS3, domain.ProviderLocal} {
		t.Run(string(pt), func(t *testing.T) {
			if _, err := Open(cfg, pt); !errors.Is(err, domain.ErrProviderNotConfigured) {
				t.Errorf("Open(%s) error = %v, want ErrProviderNotConfigured", pt, err)
			}
		})
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	if _, err := Open(config.Default(), "dropbox"); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("Open() error = %v, want ErrConfigInvalid", err)
	}
}

func TestOpen_OAuthBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.GDrive.ClientID = "id"
	cfg.Providers.GDrive.ClientSecret = "secret"
	cfg.Providers.GDrive.TokenPath = t.TempDir() + "/gdrive.json"
	cfg.Providers.OneDrive.ClientID = "id"
	cfg.Providers.OneDrive.TokenPath = t.TempDir() + "/onedrive.json"

	for _, pt := range []domain.ProviderType{domain.ProviderGDrive, domain.ProviderOneDrive} {
		t.Run(string(pt), func(t *testing.T) {
			backend, err := Open(cfg, pt)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, ok := backend.Credentials.(*credential.OAuth); !ok {
				t.Errorf("Credentials = %T, want *credential.OAuth", backend.Credentials)
			}
			if _, err := backend.Credentials.TokenSilent(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
				t.Errorf("TokenSilent() error = %v, want ErrNotAuthenticated", err)
			}
		})
	}
}

func TestResolveFolder(t *testing.T) {
	p := testutil.NewFakeProvider()
	p.AddFolder("root", "c", "Comics")
	p.AddFolder("c", "b", "Batman")
	p.AddFile("c", "x", "Batman.cbz", []byte("x"))

	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{"", "", nil},
		{"/", "", nil},
		{"Comics", "c", nil},
		{"/Comics/Batman/", "b", nil},
		{"Comics/Robin", "", domain.ErrNotFound},
		{"Comics/Batman.cbz", "", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ResolveFolder(context.Background(), p, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ResolveFolder() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ResolveFolder() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}
