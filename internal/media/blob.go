package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore is the blob service boundary: write bytes under a path, get
// back a retrievable URL. The port is narrow on purpose so an S3 or GCS
// implementation drops in without touching the coordinator.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader) (string, error)
}

// DiskStore is a filesystem BlobStore serving blobs under a base URL.
type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put writes the blob atomically: bytes go to a temp file first and the
// final name appears only on rename. A failed transfer leaves no partial
// blob at the destination path, so a URL we return always resolves.
func (d *DiskStore) Put(ctx context.Context, path string, r io.Reader) (string, error) {
	dest := filepath.Join(d.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("commit blob: %w", err)
	}

	return d.baseURL + "/" + path, nil
}
