// Package storage reads source images from disk and writes processed
// results for the command-line tool. The HTTP service never touches disk:
// uploads and results live in memory for the duration of a request.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fleveque/image-service/internal/service"
)

// FileSystem writes processed images into a single output directory.
// Results are stored flat at: {baseDir}/{filename}
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	// 0755 is the Unix permission mode: owner rwx, group rx, others rx.
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// Path returns where a result named filename is stored. Any directory part
// of filename is dropped so a result can never escape baseDir.
func (fs *FileSystem) Path(filename string) string {
	return filepath.Join(fs.baseDir, filepath.Base(filename))
}

// Write saves a result to disk and returns the path it was written to.
func (fs *FileSystem) Write(filename string, data []byte) (string, error) {
	path := fs.Path(filename)
	// WriteFile creates or truncates the file.
	// 0644: owner rw, group r, others r, standard for non-executable files.
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadImage reads a source image, applying the same size ceiling as the
// HTTP upload path. Reading stops one byte past maxBytes, so a huge file is
// rejected without being loaded.
func ReadImage(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &service.Error{
				Kind:    service.KindNotFound,
				Message: fmt.Sprintf("image file not found: %s", path),
				Err:     err,
			}
		}
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		size := int64(-1)
		if info, statErr := f.Stat(); statErr == nil {
			size = info.Size()
		}
		return nil, service.FileTooLarge(maxBytes, size)
	}
	return data, nil
}
