package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cuemby/forkful/pkg/metrics"
)

var (
	ErrInvalidPath = errors.New("invalid media path")
	ErrTooLarge    = errors.New("media too large")
	ErrUnsupported = errors.New("unsupported media type")
	ErrNotFound    = errors.New("media not found")
)

// AllowedTypes lists the content types accepted for upload
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store defines file storage addressed by slash separated paths
type Store interface {
	// Put writes r under name and returns the stored object
	Put(name string, r io.Reader) (*Object, error)

	// Open returns a reader for name
	Open(name string) (io.ReadCloser, *Object, error)

	// Delete removes name, or everything below it when it is a prefix
	Delete(name string) error
}

// Object describes a stored file
type Object struct {
	Path        string
	ContentType string
	Size        int64
}

// LocalStore keeps media on the local filesystem
type LocalStore struct {
	basePath string
	maxBytes int64
}

// NewLocalStore creates a local media store rooted at basePath
func NewLocalStore(basePath string, maxBytes int64) (*LocalStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("media base path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &LocalStore{
		basePath: basePath,
		maxBytes: maxBytes,
	}, nil
}

// Clean validates a media path and returns its canonical form. Absolute
// paths, empty paths and paths escaping the root are rejected.
func Clean(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

func (s *LocalStore) fullPath(name string) (string, error) {
	cleaned, err := Clean(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Put sniffs the content type, enforces the size limit and writes the file
func (s *LocalStore) Put(name string, r io.Reader) (*Object, error) {
	full, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := AllowedTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write media: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	metrics.MediaBytesWritten.Add(float64(len(data)))

	cleaned, _ := Clean(name)
	return &Object{Path: cleaned, ContentType: contentType, Size: int64(len(data))}, nil
}

// Open returns the file contents and its sniffed content type
func (s *LocalStore) Open(name string) (io.ReadCloser, *Object, error) {
	full, err := s.fullPath(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open media: %w", err)
	}

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to rewind media: %w", err)
	}

	cleaned, _ := Clean(name)
	return f, &Object{
		Path:        cleaned,
		ContentType: http.DetectContentType(bytes.Clone(head[:n])),
		Size:        info.Size(),
	}, nil
}

// Delete removes a file or a directory prefix. Missing paths are not an error.
func (s *LocalStore) Delete(name string) error {
	full, err := s.fullPath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}
