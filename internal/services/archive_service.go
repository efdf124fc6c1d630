package services

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// BuildArchive materializes a generation result into a zip archive with every
// file rooted under the sanitized pack name. Entry order follows input order
// and entry metadata is fixed, so the same result always produces the same
// archive. An empty file list yields a valid archive with no entries.
func BuildArchive(result *GenerationResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, file := range result.Files {
		header := &zip.FileHeader{
			Name:   fmt.Sprintf("%s/%s", result.RootName, file.Path),
			Method: zip.Deflate,
		}
		entry, err := w.CreateHeader(header)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write([]byte(file.Content)); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
