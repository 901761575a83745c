// Package archive lists and extracts page images from comic archives.
// Zip-based archives are read in-process; rar-based archives go through
// the external unar and lsar tools.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
)

// ImageExts are the page extensions recognized inside archives
var ImageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// IsImageName reports whether name has an image extension (case-insensitive)
func IsImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Inspector reads archive contents. It is safe for concurrent use:
// single-entry extractions each get their own scratch directory.
type Inspector struct {
	tools   Tools
	runner  Runner
	scratch string
}

// Option configures an Inspector
type Option func(*Inspector)

// WithRunner replaces the os/exec runner
func WithRunner(r Runner) Option {
	return func(i *Inspector) { i.runner = r }
}

// NewInspector creates an inspector that extracts under scratchDir
func NewInspector(tools Tools, scratchDir string, opts ...Option) *Inspector {
	i := &Inspector{
		tools:   tools,
		runner:  ExecRunner{},
		scratch: scratchDir,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Tools returns the resolved tool paths
func (i *Inspector) Tools() Tools {
	return i.tools
}

// Ref stats path into an ArchiveRef. Path is absolute with symlinks
// resolved, so a link and its target share one ref; Kind still follows
// the name the caller used.
func Ref(path string) (domain.ArchiveRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.ArchiveRef{}, err
	}
	kind := domain.KindOf(abs)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ArchiveRef{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return domain.ArchiveRef{}, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if info.IsDir() {
		return domain.ArchiveRef{}, fmt.Errorf("%s: %w", path, domain.ErrNotFile)
	}
	return domain.ArchiveRef{
		Path:    abs,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Kind:    kind,
	}, nil
}

// FirstPage returns the bytes of the representative page of ref: the
// case-insensitively first image entry. It returns domain.ErrNoImage when
// the archive has none and *domain.ExtractionError when a tool fails.
func (i *Inspector) FirstPage(ctx context.Context, ref domain.ArchiveRef) ([]byte, error) {
	switch ref.Kind {
	case domain.ArchiveZip:
		return ZipFirstImage(ref.Path)
	case domain.ArchiveRar:
		entry, err := i.FirstImageEntryName(ctx, ref.Path)
		if err != nil {
			return nil, err
		}
		return i.ExtractSingle(ctx, ref.Path, entry)
	default:
		return nil, fmt.Errorf("%s: %w", ref.Name(), domain.ErrUnsupportedArchive)
	}
}

// Open fully extracts an archive for reading and returns its directory
// together with the ordered page paths
func (i *Inspector) Open(ctx context.Context, ref domain.ArchiveRef) (string, []string, error) {
	var dir string
	switch ref.Kind {
	case domain.ArchiveZip:
		dir = i.stemDir(ref.Path)
		if err := purge(dir); err != nil {
			return "", nil, err
		}
		if err := ZipExtractAll(ref.Path, dir); err != nil {
			return "", nil, err
		}
	case domain.ArchiveRar:
		var err error
		if dir, err = i.ExtractAll(ctx, ref.Path); err != nil {
			return "", nil, err
		}
	default:
		return "", nil, fmt.Errorf("%s: %w", ref.Name(), domain.ErrUnsupportedArchive)
	}

	pages, err := ListImages(dir)
	if err != nil {
		return "", nil, err
	}
	if len(pages) == 0 {
		return dir, nil, fmt.Errorf("%s: %w", ref.Name(), domain.ErrNoImage)
	}
	logger.Get().Debug("archive opened", "archive", ref.Name(), "pages", len(pages))
	return dir, pages, nil
}

// ListImages returns every image under dir, recursively, ordered by
// lowercased base name
func ListImages(dir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageName(d.Name()) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(images, func(a, b int) bool {
		return strings.ToLower(filepath.Base(images[a])) < strings.ToLower(filepath.Base(images[b]))
	})
	return images, nil
}

// stemDir is the deterministic full-extraction directory for an archive
func (i *Inspector) stemDir(archivePath string) string {
	base := filepath.Base(archivePath)
	return filepath.Join(i.scratch, strings.TrimSuffix(base, filepath.Ext(base)))
}

// purge empties dir, creating it if needed
func purge(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
