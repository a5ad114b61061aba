package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const defaultFileMode fs.FileMode = 0644

// FileStore reads and writes documents on the local filesystem.
//
// Relative locators are resolved against Root when it is set. Documents are
// decoded to UTF-8 on load and re-encoded with the same encoding on save.
type FileStore struct {
	Root     string
	Encoding Encoding
}

// NewFileStore creates a FileStore rooted at root using the named encoding.
// An empty encoding means raw UTF-8.
func NewFileStore(root string, enc Encoding) (*FileStore, error) {
	if _, err := enc.codec(); err != nil {
		return nil, err
	}
	return &FileStore{Root: root, Encoding: enc}, nil
}

// Path returns the filesystem path a locator resolves to.
func (s *FileStore) Path(locator string) string {
	if s.Root == "" || filepath.IsAbs(locator) {
		return filepath.Clean(locator)
	}
	return filepath.Join(s.Root, locator)
}

// Load reads and decodes the document at locator.
func (s *FileStore) Load(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := s.Path(locator)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	doc, err := s.Encoding.decode(data)
	if err != nil {
		return "", fmt.Errorf("load %s: decode %s: %w", path, s.Encoding.name(), err)
	}
	return doc, nil
}

// Save encodes doc and replaces the file at locator atomically: the content
// is written to a temporary file in the same directory and renamed over the
// target. The target's existing permission bits are preserved.
func (s *FileStore) Save(ctx context.Context, locator string, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(locator)

	data, err := s.Encoding.encode(doc)
	if err != nil {
		return fmt.Errorf("save %s: encode %s: %w", path, s.Encoding.name(), err)
	}

	mode := defaultFileMode
	info, err := os.Stat(path)
	switch {
	case err == nil:
		mode = info.Mode().Perm()
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("save %s: %w", path, err)
	}

	if err := writeAtomic(path, data, mode); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
