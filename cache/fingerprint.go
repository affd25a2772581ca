package cache

import (
	"fmt"
	"os"
	"time"
)

// Fingerprint records the observed state of a source file at Set time.
// An entry carrying a fingerprint is treated as stale when the file's
// mtime or size no longer matches.
type Fingerprint struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mtime"`
	Size    int64     `json:"size"`
}

// StatFunc reports the current fingerprint of a path. The check must stay
// cheap: a stat, never a content read.
type StatFunc func(path string) (Fingerprint, error)

// OSStat is the default StatFunc backed by os.Stat.
func OSStat(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrStatFailed, err)
	}
	return Fingerprint{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// Matches reports whether the live file state still matches the recorded
// fingerprint. A stat failure (e.g. the file was removed) counts as a
// mismatch.
func (f Fingerprint) Matches(stat StatFunc) bool {
	live, err := stat(f.Path)
	if err != nil {
		return false
	}
	return live.ModTime.Equal(f.ModTime) && live.Size == f.Size
}
