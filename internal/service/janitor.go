package service

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultTempFileMaxAge is how old a temp file must be before Sweep removes it
const DefaultTempFileMaxAge = 300 * time.Second

// Janitor removes stale temp files left behind by image decoders
type Janitor struct {
	glob   string
	maxAge time.Duration
	now    func() time.Time
}

// NewJanitor creates a janitor for files matching glob
func NewJanitor(glob string, maxAge time.Duration) *Janitor {
	if maxAge <= 0 {
		maxAge = DefaultTempFileMaxAge
	}
	return &Janitor{glob: glob, maxAge: maxAge, now: time.Now}
}

// Sweep deletes matching files older than maxAge and returns how many it
// removed. Errors are ignored; another worker may be sweeping too.
func (j *Janitor) Sweep() int {
	if j == nil || j.glob == "" {
		return 0
	}

	matches, err := filepath.Glob(j.glob)
	if err != nil {
		return 0
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, name := range matches {
		info, err := os.Stat(name)
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(name) == nil {
				removed++
			}
		}
	}
	return removed
}
