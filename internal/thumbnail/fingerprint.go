package thumbnail

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Fingerprint names the cache slot of an archive snapshot. It is the hex
// BLAKE3 digest of "abs path|mtime ns|size", so touching or replacing the
// archive yields a new slot.
func Fingerprint(ref domain.ArchiveRef) string {
	key := ref.Path + "|" + strconv.FormatInt(ref.ModTime.UnixNano(), 10) + "|" + strconv.FormatInt(ref.Size, 10)
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
