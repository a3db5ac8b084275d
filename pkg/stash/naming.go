package stash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	slugMaxLen        = 32
	shortHashLen      = 4
	maxNamingAttempts = 100

	extArchive    = ".tar"
	extCompressed = ".tar.gz"
)

// archiveName picks a collision-free filename for a new archive in dir.
//
// The candidate is slug(action)[:32] + "-" + digest[:4] + ext: a deliberate
// short hash traded for short filenames, reconciled by a bounded suffix
// retry. Existence is checked against the filesystem rather than the index,
// which also guards against stray files.
func archiveName(dir, action, inputFingerprint string, compressed bool) (string, error) {
	ext := extArchive
	if compressed {
		ext = extCompressed
	}
	base := slug(action)
	if len(base) > slugMaxLen {
		base = base[:slugMaxLen]
	}
	short := digestHex(inputFingerprint)
	if len(short) > shortHashLen {
		short = short[:shortHashLen]
	}

	candidate := base + "-" + short + ext
	for attempt := 0; attempt <= maxNamingAttempts; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%s-%d%s", base, short, attempt, ext)
		}
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %d attempts for action %q", ErrNamingExhausted, maxNamingAttempts, action)
}

// slug lowercases action and collapses runs of non-alphanumerics to single
// dashes.
func slug(action string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(action) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// digestHex strips the algorithm prefix from a canonical digest string.
func digestHex(d string) string {
	if i := strings.IndexByte(d, ':'); i >= 0 {
		return d[i+1:]
	}
	return d
}

// isArchiveFile reports whether name looks like one of our archive blobs.
// Used by orphan cleanup so it never touches the metadata document or other
// foreign files in the workspace.
func isArchiveFile(name string) bool {
	return strings.HasSuffix(name, extCompressed) || strings.HasSuffix(name, extArchive)
}
