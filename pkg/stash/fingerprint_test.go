package stash

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
	return path
}

func TestFingerprintDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.txt", "beta")

	fp := NewDigestFingerprinter()

	first, err := fp.Fingerprint([]string{"a.txt", "b.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	second, err := fp.Fingerprint([]string{"b.txt", "a.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if first != second {
		t.Errorf("declaration order changed the digest: %s vs %s", first, second)
	}
}

func TestFingerprintContentChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src.txt", "v1")

	fp := NewDigestFingerprinter()
	before, err := fp.Fingerprint([]string{"src.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	writeFile(t, dir, "src.txt", "v2")
	after, err := fp.Fingerprint([]string{"src.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if before == after {
		t.Error("content change did not change the digest")
	}
}

func TestFingerprintUnrelatedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tracked.txt", "data")

	fp := NewDigestFingerprinter()
	before, err := fp.Fingerprint([]string{"tracked.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	writeFile(t, dir, "untracked.txt", "noise")
	after, err := fp.Fingerprint([]string{"tracked.txt"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if before != after {
		t.Error("untracked file changed the digest")
	}
}

func TestFingerprintGlobExpansion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.go", "package a")
	writeFile(t, dir, "src/b.go", "package b")

	fp := NewDigestFingerprinter()
	before, err := fp.Fingerprint([]string{"src/*.go"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	// A file appearing under the glob must invalidate.
	writeFile(t, dir, "src/c.go", "package c")
	after, err := fp.Fingerprint([]string{"src/*.go"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if before == after {
		t.Error("new glob match did not change the digest")
	}
}

func TestFingerprintGlobNoMatch(t *testing.T) {
	dir := t.TempDir()
	fp := NewDigestFingerprinter()

	if _, err := fp.Fingerprint([]string{"nothing/*.bin"}, dir); err != nil {
		t.Errorf("empty glob should not error, got %v", err)
	}
}

func TestFingerprintMissingLiteralPath(t *testing.T) {
	dir := t.TempDir()
	fp := NewDigestFingerprinter()

	_, err := fp.Fingerprint([]string{"absent.txt"}, dir)
	if err == nil {
		t.Fatal("expected error for missing literal input")
	}
	var fpErr *FingerprintError
	if !errors.As(err, &fpErr) {
		t.Fatalf("expected FingerprintError, got %T", err)
	}
	if fpErr.Path != "absent.txt" {
		t.Errorf("expected path absent.txt, got %q", fpErr.Path)
	}
}

func TestFingerprintDirectoryWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "assets/img/a.png", "png-a")
	writeFile(t, dir, "assets/img/b.png", "png-b")

	fp := NewDigestFingerprinter()
	before, err := fp.Fingerprint([]string{"assets"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	writeFile(t, dir, "assets/img/b.png", "changed")
	after, err := fp.Fingerprint([]string{"assets"}, dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if before == after {
		t.Error("nested file change did not change the digest")
	}
}

func TestEnvDigest(t *testing.T) {
	base := "sha256:abc"

	if got := envDigest(base, nil); got != base {
		t.Errorf("no env names should pass the file digest through, got %s", got)
	}

	t.Setenv("STASH_TEST_FLAVOR", "vanilla")
	first := envDigest(base, []string{"STASH_TEST_FLAVOR"})
	if first == base {
		t.Error("env reference did not change the digest")
	}

	t.Setenv("STASH_TEST_FLAVOR", "chocolate")
	second := envDigest(base, []string{"STASH_TEST_FLAVOR"})
	if first == second {
		t.Error("env value change did not change the digest")
	}
}

func TestShapeDigest(t *testing.T) {
	a := shapeDigest([]string{"out/app", "out/app.sig"})
	b := shapeDigest([]string{"out/app"})
	if a == b {
		t.Error("different output shapes produced the same digest")
	}
	if a != shapeDigest([]string{"out/app", "out/app.sig"}) {
		t.Error("shape digest is not deterministic")
	}
}

func TestSplitInputs(t *testing.T) {
	files, envs := splitInputs([]string{"main.go", "$CC", "lib/*.go", "$CFLAGS"})
	if len(files) != 2 || files[0] != "main.go" || files[1] != "lib/*.go" {
		t.Errorf("unexpected files: %v", files)
	}
	if len(envs) != 2 || envs[0] != "CC" || envs[1] != "CFLAGS" {
		t.Errorf("unexpected env names: %v", envs)
	}
}
