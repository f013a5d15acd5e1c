// Package storage keeps the binary payload of image and document assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUnknownHost    = errors.New("unknown storage host")
)

// ObjectStore is one place uploaded files can live.
type ObjectStore interface {
	Host() models.AssetHost
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time limited download link. Stores that cannot sign
	// return an empty string and no error.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NewObjectKey builds "<unix-ms>-<uuid><ext>" for an uploaded file name.
func NewObjectKey(now time.Time, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString(), ext)
}

// Registry routes object operations to the store owning a host. The upload
// host is the store new files are written to.
type Registry struct {
	stores map[models.AssetHost]ObjectStore
	upload models.AssetHost
}

func NewRegistry(upload ObjectStore, others ...ObjectStore) *Registry {
	r := &Registry{stores: map[models.AssetHost]ObjectStore{}, upload: upload.Host()}
	r.stores[upload.Host()] = upload
	for _, s := range others {
		if _, ok := r.stores[s.Host()]; !ok {
			r.stores[s.Host()] = s
		}
	}
	return r
}

// Upload returns the store new files go to.
func (r *Registry) Upload() ObjectStore {
	return r.stores[r.upload]
}

func (r *Registry) Get(host models.AssetHost) (ObjectStore, error) {
	s, ok := r.stores[host]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHost, host)
	}
	return s, nil
}

// Remove deletes the object behind a file asset.
func (r *Registry) Remove(ctx context.Context, host models.AssetHost, key string) error {
	s, err := r.Get(host)
	if err != nil {
		return err
	}
	return s.Delete(ctx, key)
}
