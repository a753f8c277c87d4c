// Package archive unpacks uploaded zip files into per-file entries.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Entry is one regular file extracted from an archive.
type Entry struct {
	Path    string
	Content []byte
}

// ExtractZip reads a zip archive from memory and returns its regular files.
// Directories are skipped; paths escaping the archive root are rejected.
func ExtractZip(data []byte) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	var out []Entry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(f.Name, "/") || strings.Contains(f.Name, "..") {
			return nil, fmt.Errorf("read zip: unsafe path %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", f.Name, err)
		}
		out = append(out, Entry{Path: f.Name, Content: content})
	}
	return out, nil
}
