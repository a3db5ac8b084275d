package stash

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ArchiveCodec streams a set of output paths into a single archive blob and
// back out to a target directory.
//
// Write must report the number of bytes written to sink, counted on the
// write path itself rather than measured afterwards. Extract must fail
// loudly on corrupt archives; it does not roll back a partial extraction.
type ArchiveCodec interface {
	Write(paths []string, dir string, sink io.Writer, compress bool) (int64, error)
	Extract(archivePath, destDir string) error
}

// TarCodec implements ArchiveCodec as a tar stream, optionally
// gzip-wrapped.
type TarCodec struct{}

// Write archives the files matched by paths (resolved against dir) into
// sink and returns the bytes written.
func (TarCodec) Write(paths []string, dir string, sink io.Writer, compress bool) (int64, error) {
	files, err := expandPaths(paths, dir)
	if err != nil {
		return 0, err
	}

	counter := &countingWriter{w: sink}
	var dst io.Writer = counter
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(counter)
		dst = gz
	}
	tw := tar.NewWriter(dst)

	for _, file := range files {
		if err := writeTarEntry(tw, file, dir); err != nil {
			tw.Close()
			if gz != nil {
				gz.Close()
			}
			return counter.n, err
		}
	}
	if err := tw.Close(); err != nil {
		if gz != nil {
			gz.Close()
		}
		return counter.n, err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return counter.n, err
		}
	}
	return counter.n, nil
}

func writeTarEntry(tw *tar.Writer, file, dir string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(dir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Outside the working directory; keep the cleaned absolute path
		// under a stable name instead of leaking "..".
		rel = filepath.Base(file)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()
	_, err = io.Copy(tw, fh)
	return err
}

// Extract unpacks the archive at archivePath into destDir. Compression is
// detected from the gzip magic bytes, not the filename.
func (TarCodec) Extract(archivePath, destDir string) error {
	fh, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer fh.Close()

	var src io.Reader = fh
	var magic [2]byte
	if _, err := io.ReadFull(fh, magic[:]); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		if _, err := fh.Seek(0, io.SeekStart); err != nil {
			return err
		}
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return err
		}
		defer gz.Close()
		src = gz
	} else {
		if _, err := fh.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
			return fmt.Errorf("unsafe entry name %q", hdr.Name)
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)&os.ModePerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&os.ModePerm)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry type %q for %q", hdr.Typeflag, hdr.Name)
		}
	}
}

// countingWriter couples byte counting to the write stream so the recorded
// size reflects every byte the codec produced.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
