package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/metrics"
	"github.com/Ning0612/Comicshelf/internal/retry"
)

const (
	// MimeTypeFolder is the MIME type for Google Drive folders
	MimeTypeFolder = "application/vnd.google-apps.folder"
	// PageSize is the number of files to fetch per request
	PageSize = 200
	// RootFolderID is Drive's alias for "My Drive"
	RootFolderID = "root"

	listFields = "nextPageToken, files(id, name, mimeType, size, md5Checksum)"
)

// Adapter lists and downloads files from Google Drive, including shared drives
type Adapter struct {
	service *drive.Service
	policy  retry.Policy
}

// Option configures the adapter
type Option func(*settings)

type settings struct {
	clientOpts []option.ClientOption
	policy     retry.Policy
}

// WithClientOptions passes extra options to the Drive client (endpoint overrides in tests)
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// New creates a Drive adapter over an authenticated HTTP client
func New(ctx context.Context, client *http.Client, opts ...Option) (*Adapter, error) {
	s := settings{policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(&s)
	}

	clientOpts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.clientOpts...)
	service, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Adapter{service: service, policy: s.policy}, nil
}

// ListChildren returns the non-trashed children of a folder, folders
// first, following page tokens until exhausted. An empty ID lists My Drive.
func (a *Adapter) ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error) {
	if folderID == "" {
		folderID = RootFolderID
	}
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryString(folderID))

	var nodes []domain.RemoteNode
	pageToken := ""
	for {
		list, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*drive.FileList, error) {
			call := a.service.Files.List().
				Context(ctx).
				Q(query).
				PageSize(PageSize).
				OrderBy("folder,name").
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Fields(listFields)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			fl, err := call.Do()
			return fl, mapError("list "+folderID, err)
		})
		metrics.RecordProviderCall("gdrive", "list", err == nil)
		if err != nil {
			return nil, err
		}

		for _, f := range list.Files {
			nodes = append(nodes, nodeFromDrive(f))
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}
	return nodes, nil
}

// Download streams a file's content
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*http.Response, error) {
		resp, err := a.service.Files.Get(fileID).
			SupportsAllDrives(true).
			Context(ctx).
			Download()
		return resp, mapError("download "+fileID, err)
	})
	metrics.RecordProviderCall("gdrive", "download", err == nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AccountLabel returns "<display name> <email>" of the signed-in user
func (a *Adapter) AccountLabel(ctx context.Context) string {
	about, err := a.service.About.Get().Fields("user(displayName,emailAddress)").Context(ctx).Do()
	if err != nil || about.User == nil {
		return domain.DefaultAccountLabel
	}
	label := strings.TrimSpace(about.User.DisplayName + " " + about.User.EmailAddress)
	if label == "" {
		return domain.DefaultAccountLabel
	}
	return label
}

func nodeFromDrive(f *drive.File) domain.RemoteNode {
	node := domain.RemoteNode{
		ID:       f.Id,
		Name:     f.Name,
		IsFolder: f.MimeType == MimeTypeFolder,
	}
	if !node.IsFolder {
		node.Size = f.Size
		node.MD5 = f.Md5Checksum
	}
	return node
}

// escapeQueryString escapes special characters in Drive query strings
func escapeQueryString(s string) string {
	// Escape backslash first, then single quote
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

// mapError converts Google API errors to domain errors. Rate limits and
// server errors are marked transient.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case apiErr.Code == http.StatusUnauthorized:
			return &domain.AuthError{Provider: "gdrive", Err: fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, apiErr.Message)}
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code == http.StatusForbidden && isRateLimitReason(apiErr):
			return retry.Transient(fmt.Errorf("%s: %w", op, domain.ErrRateLimited))
		case apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, domain.ErrPermissionDenied)
		case apiErr.Code >= 500:
			return retry.Transient(&domain.NetworkError{Op: op, Err: err})
		}
		return &domain.NetworkError{Op: op, Err: err}
	}

	return retry.Transient(&domain.NetworkError{Op: op, Err: err})
}

func isRateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
