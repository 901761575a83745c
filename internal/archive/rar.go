package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
)

// ExtractAll decompresses a rar archive into <scratch>/<archive stem>,
// purging any previous extraction first, and returns that directory
func (i *Inspector) ExtractAll(ctx context.Context, archivePath string) (string, error) {
	if i.tools.Unar == "" {
		return "", toolMissing(archivePath, "unar")
	}

	dir := i.stemDir(archivePath)
	if err := purge(dir); err != nil {
		return "", err
	}

	_, stderr, err := i.runner.Run(ctx, i.tools.Unar,
		"-quiet", "-force-overwrite", "-output-directory", dir, archivePath)
	if err != nil {
		return "", &domain.ExtractionError{
			Archive: filepath.Base(archivePath),
			Tool:    "unar",
			Stderr:  strings.TrimSpace(string(stderr)),
			Err:     err,
		}
	}
	return dir, nil
}

// lsarListing covers the JSON shapes lsar has emitted across versions
type lsarListing struct {
	Contents []lsarEntry `json:"lsarContents"`
	Files    []lsarEntry `json:"files"`
}

type lsarEntry struct {
	XADFileName string `json:"XADFileName"`
	Name        string `json:"Name"`
	LowerName   string `json:"name"`
}

func (e lsarEntry) name() string {
	switch {
	case e.XADFileName != "":
		return e.XADFileName
	case e.Name != "":
		return e.Name
	default:
		return e.LowerName
	}
}

// FirstImageEntryName lists a rar archive with lsar (no extraction) and
// returns the case-insensitively first image entry name
func (i *Inspector) FirstImageEntryName(ctx context.Context, archivePath string) (string, error) {
	if i.tools.Lsar == "" {
		return "", toolMissing(archivePath, "lsar")
	}

	stdout, stderr, err := i.runner.Run(ctx, i.tools.Lsar, "-json", archivePath)
	if err != nil {
		return "", &domain.ExtractionError{
			Archive: filepath.Base(archivePath),
			Tool:    "lsar",
			Stderr:  strings.TrimSpace(string(stderr)),
			Err:     err,
		}
	}

	names, err := parseLsar(stdout)
	if err != nil {
		return "", &domain.ExtractionError{Archive: filepath.Base(archivePath), Tool: "lsar", Err: err}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%s: %w", filepath.Base(archivePath), domain.ErrNoImage)
	}
	return names[0], nil
}

// parseLsar extracts image entry names from lsar -json output, ordered
// case-insensitively
func parseLsar(data []byte) ([]string, error) {
	var listing lsarListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parse lsar output: %w", err)
	}

	entries := listing.Contents
	if len(entries) == 0 {
		entries = listing.Files
	}

	var names []string
	for _, e := range entries {
		if n := e.name(); n != "" && IsImageName(n) {
			names = append(names, n)
		}
	}
	sort.SliceStable(names, func(a, b int) bool {
		return strings.ToLower(names[a]) < strings.ToLower(names[b])
	})
	return names, nil
}

// ExtractSingle extracts one entry of a rar archive and returns its bytes.
// unar may rename or relocate the output, so the file is located by, in
// order: its basename at the scratch root, the first recursive basename
// match, and finally the first image anywhere under the scratch area.
func (i *Inspector) ExtractSingle(ctx context.Context, archivePath, entry string) ([]byte, error) {
	if i.tools.Unar == "" {
		return nil, toolMissing(archivePath, "unar")
	}

	if err := os.MkdirAll(i.scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch: %w", err)
	}
	tmp, err := os.MkdirTemp(i.scratch, "single-")
	if err != nil {
		return nil, fmt.Errorf("create scratch: %w", err)
	}
	defer os.RemoveAll(tmp)

	_, stderr, err := i.runner.Run(ctx, i.tools.Unar,
		"-quiet", "-force-overwrite", "-no-directory", "-output-directory", tmp, archivePath, entry)
	if err != nil {
		return nil, &domain.ExtractionError{
			Archive: filepath.Base(archivePath),
			Tool:    "unar",
			Stderr:  strings.TrimSpace(string(stderr)),
			Err:     err,
		}
	}

	found, how := resolveExtracted(tmp, path.Base(filepath.ToSlash(entry)))
	if found == "" {
		return nil, fmt.Errorf("%s: unar produced no image for %q: %w", filepath.Base(archivePath), entry, domain.ErrNoImage)
	}

	logger.Get().Debug("entry extracted", "archive", filepath.Base(archivePath), "entry", entry, "resolved", how)
	return os.ReadFile(found)
}

// resolveExtracted applies the three-step lookup and names the step that matched
func resolveExtracted(root, leaf string) (string, string) {
	direct := filepath.Join(root, leaf)
	if info, err := os.Stat(direct); err == nil && info.Mode().IsRegular() {
		return direct, "direct"
	}

	var match string
	errStop := errors.New("stop")
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == leaf {
			match = p
			return errStop
		}
		return nil
	})
	if match != "" {
		return match, "basename"
	}

	var images []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() && IsImageName(d.Name()) {
			images = append(images, p)
		}
		return nil
	})
	if len(images) == 0 {
		return "", ""
	}
	sort.Slice(images, func(a, b int) bool {
		return strings.ToLower(filepath.ToSlash(images[a])) < strings.ToLower(filepath.ToSlash(images[b]))
	})
	return images[0], "fallback"
}

func toolMissing(archivePath, tool string) error {
	return &domain.ExtractionError{
		Archive: filepath.Base(archivePath),
		Tool:    tool,
		Err:     domain.ErrToolMissing,
	}
}
