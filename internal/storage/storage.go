package storage

import "context"

// BlobStore is the object storage boundary the pipeline consumes: durable
// blob writes behind a public URL. No delete or versioning is required.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
