// Package archive packages materialized site files into a ZIP buffer
// suitable for a direct deploy upload.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"shifttime/pkg/templates"
)

// ContentType is the media type of a packed archive
const ContentType = "application/zip"

// modTime is stamped on every entry so that equal input packs to equal bytes
var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Pack writes files, in order, as deflated entries of one ZIP archive.
// Only file entries are written; directories are implied by the paths.
func Pack(files []templates.File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		name, err := cleanPath(f.Path)
		if err != nil {
			return nil, err
		}

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modTime,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := io.WriteString(w, f.Content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack reads every file entry of a ZIP buffer back into memory
func Unpack(data []byte) ([]templates.File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	files := make([]templates.File, 0, len(zr.File))
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
		}
		files = append(files, templates.File{Path: entry.Name, Content: string(content)})
	}
	return files, nil
}

// cleanPath keeps entry names relative and inside the archive root
func cleanPath(p string) (string, error) {
	name := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("invalid archive path: %q", p)
	}
	return name, nil
}
