package collector

import (
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
)

// fileState tracks per-path tailing progress. fingerprint is a content-based
// stand-in for the original source's Unix inode number — Go's os.FileInfo
// exposes no portable inode, so identity is instead derived from a hash of
// the file's leading bytes, refreshed on every read of the file.
type fileState struct {
	path         string
	lastPosition uint64
	lastModified time.Time
	fingerprint  uint64
	errorCount   int
}

func newFileState(path string) *fileState {
	return &fileState{path: path}
}

// fingerprintFile hashes up to the first 4KB of a file to serve as a cheap
// identity check across tail ticks.
func fingerprintFile(f *os.File) uint64 {
	buf := make([]byte, 4096)
	n, err := f.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0
	}
	return xxhash.Sum64(buf[:n])
}
