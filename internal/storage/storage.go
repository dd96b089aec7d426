package storage

import (
	"context"
	"io"
)

// Backend is the object-store surface the photo pipeline needs. Both
// the MinIO and GCS clients satisfy it.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage stores listing photos in a single bucket, keyed by the
// properties/{id}/ prefix the property service assigns. The backend is
// chosen from config at startup.
type Storage struct {
	backend Backend
}

func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// Put uploads a photo under the given key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a photo for reading.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes a photo. Keys referenced by a listing should be
// removed from the listing first.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the backing bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
