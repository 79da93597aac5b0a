package blob

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

// FilesystemStore keeps object payloads under <root>/<bucket>/<escaped key>.
// Locators returned from Write are relative to root so the data directory
// can move between hosts.
type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: filepath.Clean(root)}
}

func (s *FilesystemStore) EnsureBucket(name string) error {
	return os.MkdirAll(filepath.Join(s.root, name), 0o755)
}

func (s *FilesystemStore) Write(bucket, key string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(s.root, bucket)
	if _, err := os.Stat(dir); err != nil {
		return "", 0, fmt.Errorf("bucket directory: %w", err)
	}

	name := url.PathEscape(key)
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	size, err := io.Copy(file, r)
	if err != nil {
		return "", 0, err
	}
	return bucket + "/" + name, size, nil
}

func (s *FilesystemStore) Open(path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, domainerrors.NotFoundError{Resource: "object payload"}
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *FilesystemStore) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (s *FilesystemStore) RemoveBucket(name string) error {
	return os.Remove(filepath.Join(s.root, name))
}

// resolve rejects locators that would escape the storage root.
func (s *FilesystemStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", domainerrors.ValidationError{Reason: "invalid payload locator"}
	}
	return full, nil
}
