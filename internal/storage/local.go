package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"lake-ingest/internal/domain"
)

// LocalStore is an ObjectStore rooted at a directory. Each bucket is a
// subdirectory and keys are slash-separated paths below it.
type LocalStore struct {
	root string
}

var _ domain.ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// resolve maps bucket/key to a filesystem path and rejects traversal.
func (s *LocalStore) resolve(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", domain.ErrValidation("invalid bucket %q", bucket)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", domain.ErrValidation("invalid key %q", key)
		}
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(key)), nil
}

func (s *LocalStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(p) //nolint:gosec
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("object %s not found", domain.Location(bucket, key))
		}
		return nil, fmt.Errorf("get %s: %w", domain.Location(bucket, key), err)
	}
	return body, nil
}

// Put writes to a temp file in the target directory and renames it into place.
func (s *LocalStore) Put(_ context.Context, bucket, key string, body io.Reader, _ string) error {
	p, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	p, err := s.resolve(bucket, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// List returns keys under prefix in lexical order.
func (s *LocalStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	dir, err := s.resolve(bucket, "")
	if err != nil {
		return nil, err
	}
	var keys []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", domain.Location(bucket, prefix), err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Delete(_ context.Context, bucket string, keys []string) error {
	for _, k := range keys {
		p, err := s.resolve(bucket, k)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", domain.Location(bucket, path.Clean(k)), err)
		}
	}
	return nil
}
