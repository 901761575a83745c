// Package thumbnail generates and caches downsized first-page images of
// comic archives, keyed by archive fingerprint.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/Ning0612/Comicshelf/internal/archive"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
	"github.com/Ning0612/Comicshelf/internal/metrics"
)

const cacheExt = ".png"

// PageSource yields the representative page of an archive
type PageSource interface {
	FirstPage(ctx context.Context, ref domain.ArchiveRef) ([]byte, error)
}

// Result is a thumbnail ready for display. Path is empty when the image
// could not be persisted.
type Result struct {
	Image       image.Image
	Path        string
	Fingerprint string
	Hit         bool
}

// Cache owns a directory of <fingerprint>.png files. Entries are never
// rewritten in place; a corrupt entry is deleted and regenerated.
type Cache struct {
	dir    string
	source PageSource
	group  singleflight.Group
}

// NewCache creates a cache rooted at dir reading pages from source
func NewCache(dir string, source PageSource) *Cache {
	return &Cache{dir: dir, source: source}
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// PathFor returns the cache file of a fingerprint
func (c *Cache) PathFor(fp string) string {
	return filepath.Join(c.dir, fp+cacheExt)
}

// GetOrCreate returns the thumbnail of archivePath fitted into a
// size x size box. Concurrent calls for the same fingerprint share one
// generation.
func (c *Cache) GetOrCreate(ctx context.Context, archivePath string, size int) (*Result, error) {
	if size <= 0 {
		return nil, fmt.Errorf("thumbnail size must be positive, got %d", size)
	}

	ref, err := archive.Ref(archivePath)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(ref)

	for attempt := 1; ; attempt++ {
		ch := c.group.DoChan(fp, func() (any, error) {
			return c.load(ctx, ref, fp, size)
		})

		var r singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r = <-ch:
		}
		if r.Err == nil {
			return r.Val.(*Result), nil
		}
		// a joined generation may have died with another caller's context
		if !r.Shared || !isContextError(r.Err) || ctx.Err() != nil || attempt == maxJoinAttempts {
			return nil, r.Err
		}
		logger.Get().Debug("shared thumbnail generation cancelled, retrying", "archive", ref.Name())
	}
}

const maxJoinAttempts = 3

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) load(ctx context.Context, ref domain.ArchiveRef, fp string, size int) (*Result, error) {
	path := c.PathFor(fp)

	img, err := imaging.Open(path)
	switch {
	case err == nil:
		metrics.RecordThumbnailLookup("hit")
		return &Result{Image: img, Path: path, Fingerprint: fp, Hit: true}, nil
	case errors.Is(err, fs.ErrNotExist):
		metrics.RecordThumbnailLookup("miss")
	default:
		metrics.RecordThumbnailLookup("corrupt")
		logger.Get().Warn("discarding corrupt thumbnail", "archive", ref.Name(), "error", err)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Get().Warn("failed to remove corrupt thumbnail", "path", path, "error", rmErr)
		}
	}

	start := time.Now()
	thumb, err := c.generate(ctx, ref, size)
	if err != nil {
		metrics.RecordThumbnailFailure(failureReason(err))
		return nil, err
	}

	res := &Result{Image: thumb, Fingerprint: fp}
	if err := c.persist(path, thumb); err != nil {
		logger.Get().Warn("thumbnail not persisted", "archive", ref.Name(), "error", err)
	} else {
		res.Path = path
	}

	metrics.RecordThumbnailGenerated(time.Since(start))
	logger.Get().Debug("thumbnail generated", "archive", ref.Name(), "fingerprint", fp[:12])
	return res, nil
}

func (c *Cache) generate(ctx context.Context, ref domain.ArchiveRef, size int) (image.Image, error) {
	data, err := c.source.FirstPage(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", ref.Name(), domain.ErrNoImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{Source: ref.Name(), Err: err}
	}
	return imaging.Fit(img, size, size, imaging.Lanczos), nil
}

// persist writes img as PNG through a temp file and rename
func (c *Cache) persist(path string, img image.Image) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return &domain.CacheIOError{Path: c.dir, Err: err}
	}

	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &domain.CacheIOError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	encErr := imaging.Encode(tmp, img, imaging.PNG)
	closeErr := tmp.Close()
	if encErr == nil {
		encErr = closeErr
	}
	if encErr == nil {
		encErr = os.Rename(tmpPath, path)
	}
	if encErr != nil {
		os.Remove(tmpPath)
		return &domain.CacheIOError{Path: path, Err: encErr}
	}
	return nil
}

// Prune deletes cache files that belong to none of the live archives,
// plus temp files left by interrupted writes. Archives that cannot be
// stated are treated as gone.
func (c *Cache) Prune(live []string) (int, error) {
	keep := make(map[string]bool, len(live))
	for _, p := range live {
		ref, err := archive.Ref(p)
		if err != nil {
			continue
		}
		keep[Fingerprint(ref)] = true
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, &domain.CacheIOError{Path: c.dir, Err: err}
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		stale := strings.HasSuffix(name, ".tmp")
		if !stale && strings.HasSuffix(name, cacheExt) {
			stale = !keep[strings.TrimSuffix(name, cacheExt)]
		}
		if !stale {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			return removed, &domain.CacheIOError{Path: filepath.Join(c.dir, name), Err: err}
		}
		removed++
	}

	logger.Get().Info("thumbnail cache pruned", "removed", removed, "live", len(keep))
	return removed, nil
}

func failureReason(err error) string {
	var decodeErr *domain.DecodeError
	switch {
	case errors.Is(err, domain.ErrNoImage):
		return "no_image"
	case errors.Is(err, domain.ErrToolMissing):
		return "tool_missing"
	case errors.As(err, &decodeErr):
		return "decode"
	case domain.IsExtractionError(err):
		return "extraction"
	case isContextError(err):
		return "canceled"
	default:
		return "other"
	}
}
