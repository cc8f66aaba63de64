// Package file implements the jobstore interface for a local filesystem
// directory. It exists for testing and offline operation; keys map to
// relative paths under the root.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarryhq/quarry/pkg/jobstore"
)

// Store implements jobstore.Store over a directory tree.
//
// Job ids are the first-level directory names under Root.
type Store struct {
	root string
}

// Ensure Store implements the interfaces.
var (
	_ jobstore.Store          = (*Store)(nil)
	_ jobstore.ObjectUploader = (*Store)(nil)
	_ jobstore.ObjectDeleter  = (*Store)(nil)
)

// Config configures a filesystem job store.
type Config struct {
	// Root is the directory holding job folders (required). Created if absent.
	Root string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root dir is required")
	}
	return nil
}

// New creates a filesystem-backed job store rooted at cfg.Root.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root := filepath.Clean(cfg.Root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &jobstore.StoreError{Op: "New", Backend: jobstore.BackendFile, Bucket: root, Err: err}
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Close releases any resources held by the store.
func (s *Store) Close() error { return nil }

// ListJobIDs returns the first-level directory names under the root, sorted.
func (s *Store) ListJobIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, s.wrapError("ListJobIDs", "", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether a regular file is stored at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return false, s.wrapError("Exists", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.wrapError("Exists", key, err)
	}
	return !st.IsDir(), nil
}

// GetText reads the file at key. A missing file yields ok=false.
func (s *Store) GetText(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return "", false, s.wrapError("GetText", key, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, s.wrapError("GetText", key, err)
	}
	return string(data), true, nil
}

// PutText writes text at key, creating parent directories as needed.
func (s *Store) PutText(ctx context.Context, key, text string) error {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return s.wrapError("PutText", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return s.wrapError("PutText", key, err)
	}
	if err := os.WriteFile(full, []byte(text), 0o644); err != nil {
		return s.wrapError("PutText", key, err)
	}
	return nil
}

// PutTextIfAbsent creates key only if no file exists there, using
// O_CREATE|O_EXCL so concurrent callers race at the filesystem and exactly
// one wins.
func (s *Store) PutTextIfAbsent(ctx context.Context, key, text string) (bool, error) {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return false, s.wrapError("PutTextIfAbsent", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return false, s.wrapError("PutTextIfAbsent", key, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, s.wrapError("PutTextIfAbsent", key, err)
	}

	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return false, s.wrapError("PutTextIfAbsent", key, err)
	}
	if err := f.Close(); err != nil {
		return false, s.wrapError("PutTextIfAbsent", key, err)
	}
	return true, nil
}

// DownloadPrefix copies the job folder into destDir. A pre-existing
// destination is removed first so the mirror holds no stale leftovers.
func (s *Store) DownloadPrefix(ctx context.Context, prefix, destDir string) error {
	_ = ctx
	src, err := s.fullPath(prefix)
	if err != nil {
		return s.wrapError("DownloadPrefix", prefix, err)
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(destDir, 0o755)
		}
		return s.wrapError("DownloadPrefix", prefix, err)
	}

	if err := os.RemoveAll(destDir); err != nil {
		return s.wrapError("DownloadPrefix", prefix, err)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return s.wrapError("DownloadPrefix", prefix, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// UploadFile copies a local file into the namespace at key.
func (s *Store) UploadFile(ctx context.Context, localPath, key string) error {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return s.wrapError("UploadFile", key, err)
	}
	if err := copyFile(localPath, full); err != nil {
		return s.wrapError("UploadFile", key, err)
	}
	return nil
}

// DeleteObject deletes an object. Deleting a missing object is not an error.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return s.wrapError("DeleteObject", key, err)
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.wrapError("DeleteObject", key, err)
	}
	return nil
}

// fullPath resolves a key to a path under the root, rejecting traversal.
func (s *Store) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid key path")
		}
	}
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &jobstore.StoreError{Op: op, Backend: jobstore.BackendFile, Bucket: s.root, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to store sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = jobstore.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = jobstore.ErrAccessDenied
	}
	return wrapped
}
