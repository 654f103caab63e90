package object

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// SignedURLIssuer is an optional capability of stores that can mint
// time-limited GET URLs for an object, e.g. S3 presigning.
type SignedURLIssuer interface {
	SignedGetURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// KeySaver is an optional capability of stores that can write an object
// under a caller-chosen key, overwriting any existing object.
type KeySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}
