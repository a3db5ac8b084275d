package stash

import (
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stash.yaml", `
dir: .stash
max_size: 512mb
compress: true
work_dir: ./build
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dir != ".stash" || cfg.MaxSize != "512mb" || !cfg.Compress || cfg.WorkDir != "./build" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"1kb", 1000},
		{"1KiB", 1024},
		{"2mb", 2_000_000},
	}
	for _, c := range cases {
		got, err := ParseSize(c.in)
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := ParseSize("not-a-size"); err == nil {
		t.Error("expected error for garbage size")
	}
}

func TestNewFromConfig(t *testing.T) {
	e, err := NewFromConfig(Config{
		Dir:     filepath.Join(t.TempDir(), "cache"),
		MaxSize: "1mb",
	})
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if e.maxBytes != 1_000_000 {
		t.Errorf("maxBytes = %d, want 1000000", e.maxBytes)
	}

	if _, err := NewFromConfig(Config{Dir: t.TempDir(), MaxSize: "garbage"}); err == nil {
		t.Error("expected error for bad max_size")
	}
}
