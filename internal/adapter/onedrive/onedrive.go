// Package onedrive reads a OneDrive through the Microsoft Graph REST API.
package onedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/metrics"
	"github.com/Ning0612/Comicshelf/internal/retry"
)

const (
	// GraphBaseURL is the Graph v1.0 endpoint
	GraphBaseURL = "https://graph.microsoft.com/v1.0"
	// PageSize requested per children call; Graph may return fewer
	PageSize = 200

	childFields = "id,name,folder,size,file"
)

// Adapter lists and downloads drive items of the signed-in user
type Adapter struct {
	client  *http.Client
	baseURL string
	policy  retry.Policy
}

// Option configures the adapter
type Option func(*Adapter)

// WithBaseURL points the adapter at another Graph endpoint
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Adapter) { a.policy = p }
}

// New creates an adapter over an authenticated HTTP client
func New(client *http.Client, opts ...Option) *Adapter {
	a := &Adapter{client: client, baseURL: GraphBaseURL, policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type driveItem struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	Folder *struct{} `json:"folder,omitempty"`
	File   *struct {
		Hashes struct {
			SHA1 string `json:"sha1Hash"`
		} `json:"hashes"`
	} `json:"file,omitempty"`
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type profile struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ListChildren returns the children of a folder, following
// @odata.nextLink until exhausted. An empty ID (or "root") lists the drive root.
func (a *Adapter) ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error) {
	next := a.childrenURL(folderID)

	var nodes []domain.RemoteNode
	for next != "" {
		page, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*childrenPage, error) {
			var p childrenPage
			return &p, a.getJSON(ctx, next, &p)
		})
		metrics.RecordProviderCall("onedrive", "list", err == nil)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Value {
			node := domain.RemoteNode{ID: item.ID, Name: item.Name, IsFolder: item.Folder != nil}
			if !node.IsFolder {
				node.Size = item.Size
			}
			// Business drives only carry quickXorHash, which is left unverified
			if item.File != nil {
				node.SHA1 = strings.ToLower(item.File.Hashes.SHA1)
			}
			nodes = append(nodes, node)
		}
		next = page.NextLink
	}
	return nodes, nil
}

func (a *Adapter) childrenURL(folderID string) string {
	q := url.Values{}
	q.Set("$select", childFields)
	q.Set("$top", fmt.Sprint(PageSize))

	if folderID == "" || folderID == "root" {
		return a.baseURL + "/me/drive/root/children?" + q.Encode()
	}
	return a.baseURL + "/me/drive/items/" + url.PathEscape(folderID) + "/children?" + q.Encode()
}

// Download streams an item's content. Graph answers with a redirect to a
// pre-authenticated URL, which the HTTP client follows.
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	target := a.baseURL + "/me/drive/items/" + url.PathEscape(fileID) + "/content"

	body, err := retry.Do(ctx, a.policy, func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := a.do(ctx, target)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	metrics.RecordProviderCall("onedrive", "download", err == nil)
	return body, err
}

// AccountLabel returns "<display name> <mail>", falling back to the
// user principal name when mail is unset
func (a *Adapter) AccountLabel(ctx context.Context) string {
	var p profile
	if err := a.getJSON(ctx, a.baseURL+"/me?$select=displayName,mail,userPrincipalName", &p); err != nil {
		return domain.DefaultAccountLabel
	}
	email := p.Mail
	if email == "" {
		email = p.UserPrincipalName
	}
	label := strings.TrimSpace(p.DisplayName + " " + email)
	if label == "" {
		return domain.DefaultAccountLabel
	}
	return label
}

func (a *Adapter) getJSON(ctx context.Context, target string, v any) error {
	resp, err := a.do(ctx, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.NetworkError{Op: "decode " + redact(target), Err: err}
	}
	return nil
}

// do issues a GET and returns the response only for 2xx statuses
func (a *Adapter) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(&domain.NetworkError{Op: "GET " + redact(target), Err: err})
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	return nil, mapStatus(redact(target), resp)
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapStatus converts a Graph error response to a domain error
func mapStatus(op string, resp *http.Response) error {
	var ge graphError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &ge)
	detail := fmt.Errorf("%s: HTTP %d %s %s", op, resp.StatusCode, ge.Error.Code, ge.Error.Message)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, detail)
	case resp.StatusCode == http.StatusUnauthorized:
		return &domain.AuthError{Provider: "onedrive", Err: fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, detail)}
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Transient(fmt.Errorf("%w: %w", domain.ErrRateLimited, detail))
	case resp.StatusCode >= 500:
		return retry.Transient(&domain.NetworkError{Op: op, Err: detail})
	default:
		return &domain.NetworkError{Op: op, Err: detail}
	}
}

// redact drops query strings, which may carry pre-authenticated tokens
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
