package videofiles

import (
	"context"
	"io"
)

// AWSRepository mirrors finished HLS trees to object storage.
type AWSRepository interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}
