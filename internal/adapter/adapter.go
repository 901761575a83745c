package adapter

import (
	"context"
	"io"

	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Provider defines the read-only capability every storage backend offers.
// Implementations translate backend failures into domain errors so that the
// walker and the reconciler never see SDK-specific types.
type Provider interface {
	// ListChildren returns the direct children of a folder.
	// Pagination is followed internally until the listing is exhausted.
	// Returns domain.ErrNotFound if the folder doesn't exist
	ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error)

	// Download opens the content of a file for streaming.
	// Caller is responsible for closing the reader
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)

	// AccountLabel returns a human-readable account description.
	// Never fails; falls back to a generic label.
	AccountLabel(ctx context.Context) string
}

// Credentials supplies bearer tokens for a provider.
// The OAuth flows themselves stay behind this interface.
type Credentials interface {
	// TokenSilent returns a stored token, refreshing it when expired.
	// Returns domain.ErrNotAuthenticated if no token is stored
	TokenSilent(ctx context.Context) (*oauth2.Token, error)

	// Login runs the interactive flow and persists the resulting token
	Login(ctx context.Context) (*oauth2.Token, error)
}

// Connector builds a Provider once a token is available
type Connector func(ctx context.Context, token *oauth2.Token) (Provider, error)
