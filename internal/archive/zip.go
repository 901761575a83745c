package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// maxEntrySize caps a single decompressed page
var maxEntrySize int64 = 256 << 20

// ErrEntryTooLarge reports an entry that decompresses past maxEntrySize
var ErrEntryTooLarge = errors.New("archive entry exceeds size limit")

// ZipImageNames returns the image entries of a zip archive ordered by
// lowercased entry name, read from the central directory only
func ZipImageNames(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, zipError(archivePath, err)
	}
	defer r.Close()

	return imageEntries(r.File), nil
}

func imageEntries(files []*zip.File) []string {
	var names []string
	for _, f := range files {
		if !f.FileInfo().IsDir() && IsImageName(f.Name) {
			names = append(names, f.Name)
		}
	}
	sort.SliceStable(names, func(a, b int) bool {
		return strings.ToLower(names[a]) < strings.ToLower(names[b])
	})
	return names
}

// ZipFirstImage returns the bytes of the first image entry
func ZipFirstImage(archivePath string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, zipError(archivePath, err)
	}
	defer r.Close()

	names := imageEntries(r.File)
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(archivePath), domain.ErrNoImage)
	}

	for _, f := range r.File {
		if f.Name != names[0] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, zipError(archivePath, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		if err == nil && int64(len(data)) > maxEntrySize {
			err = fmt.Errorf("%s: %w", f.Name, ErrEntryTooLarge)
		}
		if err != nil {
			return nil, zipError(archivePath, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(archivePath), domain.ErrNoImage)
}

// ZipExtractAll writes every file entry of a zip archive under dest.
// Entries that would escape dest are skipped.
func ZipExtractAll(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return zipError(archivePath, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target, ok := safeJoin(root, f.Name)
		if !ok {
			continue
		}
		if err := extractEntry(f, target); err != nil {
			return zipError(archivePath, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if err == nil && n > maxEntrySize {
		err = fmt.Errorf("%s: %w", f.Name, ErrEntryTooLarge)
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
	}
	return err
}

// safeJoin resolves an archive entry name under root, rejecting absolute
// names and anything that climbs out with ".."
func safeJoin(root, name string) (string, bool) {
	name = filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", false
	}
	full := filepath.Join(root, name)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func zipError(archivePath string, err error) error {
	return &domain.ExtractionError{Archive: filepath.Base(archivePath), Tool: "zip", Err: err}
}
