package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"wanworker/internal/ports"
)

// LocalFS implements ports.StorageProvider by copying objects under a
// root directory, typically a volume that a web server exposes.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	dst := filepath.Join(l.root, filepath.FromSlash(in.ObjectKey))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

// GetSignedURL never signs; delivery falls back to the public base.
func (l *LocalFS) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{URL: "", ExpiresAt: time.Now().UTC().Add(expiresIn)}, nil
}

// ObjectURL is a file:// URL of the stored copy.
func (l *LocalFS) ObjectURL(objectKey string) string {
	p, err := filepath.Abs(filepath.Join(l.root, filepath.FromSlash(objectKey)))
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(p)
}
