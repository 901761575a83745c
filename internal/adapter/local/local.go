package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/core/checksum"
	"github.com/Ning0612/Comicshelf/internal/domain"
)

// maxDigestSize: larger files are listed without an MD5
const maxDigestSize = 100 * 1024 * 1024

// Adapter serves a local directory (a mounted share, a USB drive) as a
// read-only provider. Folder and file IDs are slash-separated paths
// relative to the root; the root itself is "".
type Adapter struct {
	root string
	calc *checksum.Calculator
}

// New creates a local provider rooted at an existing directory
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", absRoot, domain.ErrNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absRoot, domain.ErrNotDirectory)
	}

	return &Adapter{root: absRoot, calc: checksum.NewCalculator(checksum.DefaultOptions())}, nil
}

// resolvePath maps an ID to a path inside root, rejecting escapes
func (a *Adapter) resolvePath(id string) (string, error) {
	if id == "" || id == "." {
		return a.root, nil
	}

	rel := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(rel) {
		return "", domain.ErrPermissionDenied
	}

	full := filepath.Join(a.root, rel)
	r, err := filepath.Rel(a.root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", domain.ErrPermissionDenied
	}
	return full, nil
}

// ListChildren returns the entries of a directory in name order
func (a *Adapter) ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error) {
	dir, err := a.resolvePath(folderID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapError(folderID, err)
	}

	nodes := make([]domain.RemoteNode, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// follows symlinks; broken ones are skipped
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}

		node := domain.RemoteNode{
			ID:       path.Join(filepath.ToSlash(folderID), entry.Name()),
			Name:     entry.Name(),
			IsFolder: info.IsDir(),
		}
		if info.Mode().IsRegular() {
			node.Size = info.Size()
			if node.Size <= maxDigestSize {
				if sum, err := a.digest(ctx, filepath.Join(dir, entry.Name())); err == nil {
					node.MD5 = sum
				}
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Download opens a file for reading
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	full, err := a.resolvePath(fileID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, mapError(fileID, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrNotFile)
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, mapError(fileID, err)
	}
	return f, nil
}

// AccountLabel describes the source directory
func (a *Adapter) AccountLabel(ctx context.Context) string {
	return "Local folder " + a.root
}

// Root returns the absolute root directory
func (a *Adapter) Root() string {
	return a.root
}

func (a *Adapter) digest(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return a.calc.Calculate(ctx, f, checksum.MD5)
}

// mapError converts OS errors to domain errors
func mapError(id string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", id, domain.ErrPermissionDenied)
	default:
		return err
	}
}
