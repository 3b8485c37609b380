// Package storage keeps sealed documents in a gocloud.dev blob bucket.
//
// The bucket is selected by URL: file:///var/lib/esign/documents for local
// disk, mem:// for tests, s3://bucket?region=... for S3 and S3-compatible
// stores.
package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	apperrors "github.com/recoverydesk/esign/internal/errors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

const sealedContentType = "application/octet-stream"

var (
	// ErrObjectNotFound indicates that no object exists at the path.
	ErrObjectNotFound = apperrors.Wrap(apperrors.ErrNotFound, "stored document not found")

	// ErrObjectExists indicates a write to a path that is already taken.
	ErrObjectExists = apperrors.Wrap(apperrors.ErrConflict, "stored document already exists")
)

// DocumentStore stores immutable document objects by path.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// BlobStore implements DocumentStore on a blob.Bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open document bucket: %w", err)
	}
	return NewBlobStore(bucket), nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// DocumentPath returns the object key of a sealed document.
func DocumentPath(caseID, tokenID string, documentID uuid.UUID) string {
	return path.Join("cases", caseID, tokenID, documentID.String()+".pdf.sealed")
}

// Put writes data once. Objects are never overwritten.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrObjectExists
	}

	opts := &blob.WriterOptions{
		ContentType: sealedContentType,
		Metadata:    metadata,
		IfNotExist:  true,
	}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		if gcerrors.Code(err) == gcerrors.FailedPrecondition {
			return ErrObjectExists
		}
		return apperrors.Wrap(err, "failed to write document object")
	}
	return nil
}

// Get reads the object at key.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrObjectNotFound
		}
		return nil, apperrors.Wrap(err, "failed to read document object")
	}
	return data, nil
}

// Exists reports whether an object is stored at key.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to stat document object")
	}
	return exists, nil
}

// Delete removes the object at key. Only used to clean up a write whose
// metadata row could not be recorded.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return apperrors.Wrap(err, "failed to delete document object")
	}
	return nil
}

// Close releases the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
