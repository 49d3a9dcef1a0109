package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

// DirRemote stores objects as files under root/<bucket>/<key>. Metadata
// lives in a hidden sidecar next to each object.
type DirRemote struct {
	root string
}

var _ Remote = (*DirRemote)(nil)

func NewDirRemote(root string) (*DirRemote, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("bucket root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket root: %w", err)
	}
	return &DirRemote{root: root}, nil
}

func (r *DirRemote) objectPath(bucket, key string) (string, error) {
	for _, part := range append([]string{bucket}, strings.Split(key, "/")...) {
		if part == "" || part == "." || part == ".." || strings.HasPrefix(part, ".") || strings.ContainsRune(part, filepath.Separator) {
			return "", fmt.Errorf("%w: invalid object path %s/%s", contractx.ErrValidation, bucket, key)
		}
	}
	return filepath.Join(r.root, bucket, filepath.FromSlash(key)), nil
}

func metaPath(objectPath string) string {
	return filepath.Join(filepath.Dir(objectPath), "."+filepath.Base(objectPath)+".meta.json")
}

func (r *DirRemote) Upload(_ context.Context, bucket, key string, data []byte, metadata map[string]string) error {
	path, err := r.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	meta, err := json.Marshal(cloneMeta(metadata))
	if err != nil {
		return fmt.Errorf("marshal object metadata: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	return writeAtomic(metaPath(path), meta)
}

func (r *DirRemote) Download(_ context.Context, bucket, key string) ([]byte, error) {
	path, err := r.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: object %s/%s", contractx.ErrNotFound, bucket, key)
		}
		return nil, err
	}
	return data, nil
}

func (r *DirRemote) Metadata(_ context.Context, bucket, key string) (map[string]string, error) {
	path, err := r.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: object %s/%s", contractx.ErrNotFound, bucket, key)
		}
		return nil, err
	}

	meta := map[string]string{}
	raw, err := os.ReadFile(metaPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode object metadata: %w", err)
	}
	return meta, nil
}

func (r *DirRemote) Delete(_ context.Context, bucket, key string) error {
	path, err := r.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: object %s/%s", contractx.ErrNotFound, bucket, key)
		}
		return err
	}
	if err := os.Remove(metaPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}

	base := filepath.Join(r.root, bucket)
	for dir := filepath.Dir(path); dir != base && strings.HasPrefix(dir, base); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

func (r *DirRemote) List(_ context.Context, bucket, prefix string) ([]string, error) {
	if _, err := r.objectPath(bucket, "x"); err != nil {
		return nil, err
	}
	base := filepath.Join(r.root, bucket)
	keys := []string{}

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == base {
				return fs.SkipAll
			}
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}
