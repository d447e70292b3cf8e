package util

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
)

// ZipEntry maps a file on disk to its name inside an archive.
type ZipEntry struct {
	Name string
	Path string
}

// DirEntries lists every regular file under root, named relative to root with forward slashes.
func DirEntries(root string) ([]ZipEntry, error) {
	var out []ZipEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, ZipEntry{Name: filepath.ToSlash(rel), Path: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WriteZip writes a deflated archive to dst containing entries followed by the in-memory
// files in extra. A partially written dst is removed on failure.
func WriteZip(dst string, entries []ZipEntry, extra map[string][]byte) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	zw := zip.NewWriter(f)
	if writeErr := writeEntries(zw, entries, extra); writeErr != nil {
		return errors.Join(writeErr, zw.Close(), f.Close())
	}
	if closeErr := zw.Close(); closeErr != nil {
		return errors.Join(fmt.Errorf("finish archive: %w", closeErr), f.Close())
	}
	if closeErr := f.Close(); closeErr != nil {
		return fmt.Errorf("close %s: %w", dst, closeErr)
	}
	return nil
}

func writeEntries(zw *zip.Writer, entries []ZipEntry, extra map[string][]byte) error {
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(extra[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func addFile(zw *zip.Writer, e ZipEntry) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", e.Path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header %s: %w", e.Path, err)
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy %s: %w", e.Name, err)
	}
	return nil
}
