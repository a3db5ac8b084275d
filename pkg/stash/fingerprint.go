package stash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Fingerprinter produces a stable digest over a set of input paths resolved
// against a working directory.
//
// The digest must be deterministic, content-sensitive, and insensitive to
// the declaration order of the path set: identical file contents always
// yield the identical digest, and any byte-level change, or a file appearing
// or disappearing under a declared glob, must change it.
type Fingerprinter interface {
	Fingerprint(paths []string, dir string) (string, error)
}

// DigestFingerprinter is the default Fingerprinter. It expands glob
// patterns, sorts the resolved file list, and hashes each file's path and
// content into a single canonical digest.
type DigestFingerprinter struct{}

// NewDigestFingerprinter returns the default content fingerprinter.
func NewDigestFingerprinter() *DigestFingerprinter {
	return &DigestFingerprinter{}
}

// Fingerprint implements Fingerprinter.
func (f *DigestFingerprinter) Fingerprint(paths []string, dir string) (string, error) {
	files, err := expandPaths(paths, dir)
	if err != nil {
		return "", err
	}

	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			rel = file
		}
		rel = filepath.ToSlash(rel)

		fh, err := os.Open(file)
		if err != nil {
			return "", &FingerprintError{Path: rel, Cause: err}
		}
		info, err := fh.Stat()
		if err != nil {
			fh.Close()
			return "", &FingerprintError{Path: rel, Cause: err}
		}

		// Length-prefixed framing so path/content boundaries are
		// unambiguous.
		fmt.Fprintf(h, "file\x00%d\x00%s\x00%d\x00", len(rel), rel, info.Size())
		if _, err := io.Copy(h, fh); err != nil {
			fh.Close()
			return "", &FingerprintError{Path: rel, Cause: err}
		}
		fh.Close()
	}
	return digester.Digest().String(), nil
}

// expandPaths resolves patterns against dir into a sorted, de-duplicated
// list of regular files. A literal path that does not exist is an error; a
// glob pattern matching nothing contributes nothing.
func expandPaths(patterns []string, dir string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Type().IsRegular() {
					if _, dup := seen[p]; !dup {
						seen[p] = struct{}{}
						files = append(files, p)
					}
				}
				return nil
			})
		}
		if _, dup := seen[path]; !dup {
			seen[path] = struct{}{}
			files = append(files, path)
		}
		return nil
	}

	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, pattern)
		}
		if !hasGlobMeta(full) {
			if err := add(full); err != nil {
				return nil, &FingerprintError{Path: pattern, Cause: err}
			}
			continue
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, &FingerprintError{Path: pattern, Cause: err}
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, &FingerprintError{Path: pattern, Cause: err}
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// shapeDigest fingerprints the literal output pattern list. It identifies
// the shape of an operation's output, not its content, since outputs do not
// yet exist at query time.
func shapeDigest(outputs []string) string {
	return digest.FromString(strings.Join(outputs, "\x00")).String()
}

// envDigest combines a file digest with the literal values of the referenced
// environment variables, so changing either invalidates the entry.
func envDigest(fileDigest string, envNames []string) string {
	if len(envNames) == 0 {
		return fileDigest
	}
	names := append([]string(nil), envNames...)
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(fileDigest)
	for _, name := range names {
		value := os.Getenv(name)
		fmt.Fprintf(&b, "\x00env\x00%d\x00%s\x00%d\x00%s", len(name), name, len(value), value)
	}
	return digest.FromString(b.String()).String()
}
