package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// FakeProvider is an in-memory remote tree. Children keep insertion order.
type FakeProvider struct {
	mu          sync.Mutex
	children    map[string][]domain.RemoteNode
	content     map[string][]byte
	listErr     map[string]error
	downloadErr map[string]error
	listDelay   time.Duration
	label       string

	listCalls []string
	downloads []string
}

// NewFakeProvider creates an empty tree whose root folder id is "root"
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		children:    make(map[string][]domain.RemoteNode),
		content:     make(map[string][]byte),
		listErr:     make(map[string]error),
		downloadErr: make(map[string]error),
		label:       "Test User <test@example.com>",
	}
}

// AddFolder adds a folder under parent
func (f *FakeProvider) AddFolder(parent, id, name string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parent] = append(f.children[parent], domain.RemoteNode{ID: id, Name: name, IsFolder: true})
	return f
}

// AddFile adds a file under parent, deriving Size and MD5 from data
func (f *FakeProvider) AddFile(parent, id, name string, data []byte) *FakeProvider {
	sum := md5.Sum(data)
	return f.AddNode(parent, domain.RemoteNode{
		ID:   id,
		Name: name,
		Size: int64(len(data)),
		MD5:  hex.EncodeToString(sum[:]),
	}, data)
}

// AddNode adds an arbitrary node, letting tests misreport size or digest
func (f *FakeProvider) AddNode(parent string, node domain.RemoteNode, data []byte) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parent] = append(f.children[parent], node)
	f.content[node.ID] = data
	return f
}

// SetContent replaces a file's bytes without touching its listing
func (f *FakeProvider) SetContent(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[id] = data
}

// FailList makes listing folder fail with err
func (f *FakeProvider) FailList(folder string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr[folder] = err
}

// FailDownload makes downloading file fail with err
func (f *FakeProvider) FailDownload(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadErr[id] = err
}

// SetListDelay makes every listing block for d or until ctx is done
func (f *FakeProvider) SetListDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDelay = d
}

// SetLabel sets the account label
func (f *FakeProvider) SetLabel(label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.label = label
}

// ListChildren implements adapter.Provider. An empty ID lists "root".
func (f *FakeProvider) ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, folderID)
	if folderID == "" {
		folderID = "root"
	}
	delay := f.listDelay
	err := f.listErr[folderID]
	nodes := append([]domain.RemoteNode(nil), f.children[folderID]...)
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Download implements adapter.Provider
func (f *FakeProvider) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloads = append(f.downloads, fileID)
	if err := f.downloadErr[fileID]; err != nil {
		return nil, err
	}
	data, ok := f.content[fileID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// AccountLabel implements adapter.Provider
func (f *FakeProvider) AccountLabel(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.label
}

// ListCalls returns the folder ids listed so far
func (f *FakeProvider) ListCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

// Downloads returns the file ids downloaded so far
func (f *FakeProvider) Downloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.downloads...)
}

// ResetCounters clears recorded calls
func (f *FakeProvider) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = nil
	f.downloads = nil
}
