package ports

import (
	"context"
	"io"
	"time"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// For s3 and localfs this is the key that was requested.
	// For gdrive it is the Drive fileId.
	ObjectKey string
	Size      int64
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// StorageProvider is implemented by s3, gdrive and localfs.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)

	// GetSignedURL returns an empty URL when the provider cannot sign.
	GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (SignedURLOutput, error)

	// ObjectURL is the unsigned address of objectKey, or "" if the
	// provider has none.
	ObjectURL(objectKey string) string
}
