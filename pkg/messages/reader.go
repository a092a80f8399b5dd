package messages

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// File is a raw message file
type File struct {
	Name string
	Data []byte
}

// Reader lists raw message files from a storage backend.
type Reader interface {
	Read(ctx context.Context) ([]File, error)
}

// DirReader reads *.json files from a local directory.
type DirReader struct {
	Path string
}

// NewDirReader creates a DirReader for path.
func NewDirReader(path string) *DirReader {
	return &DirReader{Path: path}
}

// isMessageFile checks if a file is a JSON message file
func isMessageFile(file os.DirEntry) bool {
	return !file.IsDir() && strings.HasSuffix(file.Name(), ".json")
}

// Read returns every message file in the directory, sorted by name.
func (r *DirReader) Read(ctx context.Context) ([]File, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", r.Path)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	files := make([]File, 0, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !isMessageFile(entry) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.Path, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", entry.Name())
		}

		files = append(files, File{Name: entry.Name(), Data: data})
	}

	return files, nil
}
