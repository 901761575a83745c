// Package library lists the comic archives in the local library directory.
package library

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Ning0612/Comicshelf/internal/logger"
)

// DefaultExtensions are the archive kinds the catalog shows
var DefaultExtensions = []string{".cbr", ".cbz"}

// Entry is one archive found in the library
type Entry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Catalog reads a library directory. It never writes to it.
type Catalog struct {
	dir  string
	exts []string
}

// New creates a catalog over dir. No extensions means DefaultExtensions.
func New(dir string, exts ...string) *Catalog {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	lower := make([]string, len(exts))
	for i, e := range exts {
		lower[i] = strings.ToLower(e)
	}
	return &Catalog{dir: dir, exts: lower}
}

// Dir returns the library directory
func (c *Catalog) Dir() string {
	return c.dir
}

// Scan walks the library recursively and returns the archives sorted
// case-insensitively by file name. A missing library is empty.
func (c *Catalog) Scan() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == c.dir {
				return err
			}
			logger.Get().Warn("Skipping unreadable library path", "path", p, "error", err)
			return nil
		}
		if d.IsDir() || !c.matches(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{Path: p, Name: d.Name(), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

func (c *Catalog) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Filter keeps entries whose name contains query, ignoring case.
// An empty query keeps everything.
func Filter(entries []Entry, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// FuzzyFilter keeps entries whose name contains the characters of query
// in order, ignoring case, closest match first. Equal distances keep
// catalog order.
func FuzzyFilter(entries []Entry, query string) []Entry {
	q := strings.TrimSpace(query)
	if q == "" {
		return entries
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	ranks := fuzzy.RankFindFold(q, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]Entry, len(ranks))
	for i, r := range ranks {
		out[i] = entries[r.OriginalIndex]
	}
	return out
}

// Paths returns the entry paths in order
func Paths(entries []Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}
