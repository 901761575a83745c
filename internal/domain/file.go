package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ArchiveKind identifies how an archive's entries can be read
type ArchiveKind int

const (
	// ArchiveUnknown is any extension we do not open
	ArchiveUnknown ArchiveKind = iota
	// ArchiveZip supports random-access entry reads (.cbz, .zip)
	ArchiveZip
	// ArchiveRar needs the external unar/lsar tools (.cbr, .rar)
	ArchiveRar
)

// String returns the string representation of the kind
func (k ArchiveKind) String() string {
	switch k {
	case ArchiveZip:
		return "zip"
	case ArchiveRar:
		return "rar"
	default:
		return "unknown"
	}
}

// KindOf derives the archive kind from a file name's extension
func KindOf(name string) ArchiveKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cbz", ".zip":
		return ArchiveZip
	case ".cbr", ".rar":
		return ArchiveRar
	default:
		return ArchiveUnknown
	}
}

// ArchiveRef is an immutable snapshot of an archive taken at inspection time
type ArchiveRef struct {
	// Path is the absolute path to the archive
	Path string

	// ModTime is the modification time at the time of inspection
	ModTime time.Time

	// Size in bytes
	Size int64

	// Kind selects the reading strategy
	Kind ArchiveKind
}

// Name returns the archive's base name
func (a ArchiveRef) Name() string {
	return filepath.Base(a.Path)
}

// RemoteNode is one entry returned by a provider listing call.
// It is transient and never persisted.
type RemoteNode struct {
	// ID is the provider-specific identifier used for listing and download
	ID string

	// Name is the display name (last path element)
	Name string

	// Path is the slash-separated path relative to the walk root
	Path string

	// IsFolder marks containers that can be listed
	IsFolder bool

	// Size in bytes, 0 when the provider does not report it
	Size int64

	// MD5 is the hex content digest when the provider exposes one
	MD5 string

	// SHA1 is the hex digest for providers that expose SHA1 but not MD5
	SHA1 string
}

// HasExtension reports whether the node name ends with one of exts (case-insensitive)
func (n RemoteNode) HasExtension(exts []string) bool {
	lower := strings.ToLower(n.Name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
