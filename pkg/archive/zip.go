package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// Unzip reads every regular file of a zip archive into memory. The names
// are returned in archive order.
func Unzip(data []byte) (map[string][]byte, []string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zip archive: %w", err)
	}

	files := make(map[string][]byte, len(r.File))
	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, nil, err
		}
		files[f.Name] = content
		names = append(names, f.Name)
	}
	return files, names, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip entry %s: %w", f.Name, err)
	}
	return content, nil
}

// FirstEntry returns the first regular file of the archive.
func FirstEntry(data []byte) (string, []byte, error) {
	files, names, err := Unzip(data)
	if err != nil {
		return "", nil, err
	}
	if len(names) == 0 {
		return "", nil, fmt.Errorf("zip archive has no entries")
	}
	return names[0], files[names[0]], nil
}

// Zip packs data as a single deflated entry.
func Zip(entryName string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	fw, err := w.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry %s: %w", entryName, err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write zip entry %s: %w", entryName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip archive: %w", err)
	}
	return buf.Bytes(), nil
}
