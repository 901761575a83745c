package diff

import (
	"os"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Decision tells the reconciler what to do with one remote file
type Decision int

const (
	// Download fetches the remote file into the library
	Download Decision = iota
	// Skip leaves the existing library file alone
	Skip
)

// String returns the string representation of the decision
func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "download"
}

// Reason explains a Decision
type Reason int

const (
	// ReasonMissing: no library file with that name
	ReasonMissing Reason = iota
	// ReasonSizeDiffers: both exist with different sizes
	ReasonSizeDiffers
	// ReasonSizeMatches: both exist with the same size
	ReasonSizeMatches
	// ReasonSizeUnknown: the provider reports no size, existence suffices
	ReasonSizeUnknown
)

// String returns the string representation of the reason
func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonSizeDiffers:
		return "size differs"
	case ReasonSizeMatches:
		return "size matches"
	case ReasonSizeUnknown:
		return "remote size unknown"
	default:
		return "unknown"
	}
}

// Local is the library-side state of a destination path
type Local struct {
	Exists bool
	Size   int64
}

// StatLocal reads the library-side state of path. A path that cannot be
// statted is reported as missing, which leads to a download attempt.
func StatLocal(path string) Local {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Local{}
	}
	return Local{Exists: true, Size: info.Size()}
}

// Compare decides whether remote must be downloaded over local.
// The library file is kept when it exists and either the sizes match or
// the remote size is unknown (zero). Timestamps are not compared: remote
// mtimes are not preserved on download.
func Compare(remote domain.RemoteNode, local Local) (Decision, Reason) {
	switch {
	case !local.Exists:
		return Download, ReasonMissing
	case remote.Size == 0:
		return Skip, ReasonSizeUnknown
	case remote.Size == local.Size:
		return Skip, ReasonSizeMatches
	default:
		return Download, ReasonSizeDiffers
	}
}
