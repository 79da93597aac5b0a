package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nolancloud/ncp/internal/auth"
	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/impls"
)

// Service implements bucket and object CRUD plus the read authorization
// engine. Reads are decided by an ordered disjunction: public flag,
// then bucket ownership, then a presented capability token. The order
// fixes which failure surfaces when nothing matches.
type Service struct {
	buckets      impls.BucketStore
	objects      impls.ObjectStore
	blobs        impls.BlobStore
	capabilities *auth.CapabilitySigner
	presignTTL   time.Duration
	logger       *slog.Logger
}

func NewService(buckets impls.BucketStore, objects impls.ObjectStore, blobs impls.BlobStore, capabilities *auth.CapabilitySigner, presignTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		buckets:      buckets,
		objects:      objects,
		blobs:        blobs,
		capabilities: capabilities,
		presignTTL:   presignTTL,
		logger:       logger,
	}
}

func (s *Service) ListBuckets(ctx context.Context, userID string) ([]domain.Bucket, error) {
	return s.buckets.ListByUser(ctx, userID)
}

// CreateBucket claims a globally unique name and creates the payload
// directory.
func (s *Service) CreateBucket(ctx context.Context, userID, name string, public bool) (*domain.Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, domainerrors.ValidationError{Reason: "bucket name is required and may not contain path separators"}
	}

	bucket := &domain.Bucket{
		ID:        uuid.NewString(),
		Name:      name,
		UserID:    userID,
		Public:    public,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.buckets.Create(ctx, bucket); err != nil {
		return nil, err
	}
	if err := s.blobs.EnsureBucket(name); err != nil {
		s.logger.Error("bucket directory create failed", "bucket", name, "error", err)
		return nil, err
	}

	s.logger.Info("bucket created", "bucket", name, "user_id", userID)
	return bucket, nil
}

// DeleteBucket removes an empty bucket. The zero-object invariant is
// checked here, not by a store-level cascade.
func (s *Service) DeleteBucket(ctx context.Context, userID, bucketID string) error {
	bucket, err := s.buckets.Get(ctx, bucketID)
	if err != nil {
		return err
	}
	if err := domain.VerifyOwner(userID, bucket.UserID); err != nil {
		return err
	}

	count, err := s.objects.Count(ctx, bucket.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domainerrors.ConflictError{Reason: "bucket is not empty, delete all objects first"}
	}

	if err := s.buckets.Delete(ctx, bucket.ID); err != nil {
		return err
	}
	if err := s.blobs.RemoveBucket(bucket.Name); err != nil {
		s.logger.Warn("bucket directory delete failed", "bucket", bucket.Name, "error", err)
	}

	s.logger.Info("bucket deleted", "bucket", bucket.Name, "user_id", userID)
	return nil
}

// PutObject writes the payload and upserts the (bucket, key) record.
// Re-uploading an existing key replaces size, type, locator and the
// public flag in place; there is no versioning.
func (s *Service) PutObject(ctx context.Context, userID, bucketName, key, contentType string, body io.Reader, public bool) (*domain.Object, error) {
	bucket, err := s.ownedBucket(ctx, userID, bucketName)
	if err != nil {
		return nil, err
	}
	if err := validKey(key); err != nil {
		return nil, err
	}

	path, size, err := s.blobs.Write(bucket.Name, key, body)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	obj := &domain.Object{
		BucketID:    bucket.ID,
		Key:         key,
		Size:        size,
		ContentType: contentType,
		Path:        path,
		Public:      public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prev, err := s.objects.Get(ctx, bucket.ID, key); err == nil {
		obj.CreatedAt = prev.CreatedAt
	}
	if err := s.objects.Put(ctx, obj); err != nil {
		return nil, err
	}

	s.logger.Info("object stored", "bucket", bucket.Name, "key", key, "size", size)
	return obj, nil
}

// DeleteObject removes the record and its payload.
func (s *Service) DeleteObject(ctx context.Context, userID, bucketName, key string) error {
	bucket, err := s.ownedBucket(ctx, userID, bucketName)
	if err != nil {
		return err
	}

	obj, err := s.objects.Get(ctx, bucket.ID, key)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, bucket.ID, key); err != nil {
		return err
	}
	if err := s.blobs.Remove(obj.Path); err != nil {
		s.logger.Warn("object payload delete failed", "bucket", bucket.Name, "key", key, "error", err)
	}
	return nil
}

// Open authorizes a read of (bucketName, key) for an optional requester
// and optional capability token, and returns the object with its payload
// stream on success.
func (s *Service) Open(ctx context.Context, requester *domain.Identity, bucketName, key, token string) (*domain.Object, io.ReadCloser, error) {
	bucket, err := s.buckets.GetByName(ctx, bucketName)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.objects.Get(ctx, bucket.ID, key)
	if err != nil {
		return nil, nil, err
	}

	if err := s.authorizeRead(requester, bucket, obj, bucketName, key, token); err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(obj.Path)
	if err != nil {
		return nil, nil, err
	}
	return obj, rc, nil
}

// authorizeRead evaluates the tri-state rule. First match wins; the
// order determines which failure message surfaces on deny.
func (s *Service) authorizeRead(requester *domain.Identity, bucket *domain.Bucket, obj *domain.Object, bucketName, key, token string) error {
	if bucket.Public || obj.Public {
		return nil
	}
	if requester != nil && requester.UserID == bucket.UserID {
		return nil
	}
	if token != "" {
		return s.capabilities.Verify(token, bucketName, key)
	}
	return domainerrors.PermissionDeniedError{Reason: "access denied"}
}

// Presign mints a time-boxed download URL for the bucket owner. The TTL
// is caller-supplied with no enforced maximum; zero means the configured
// default.
func (s *Service) Presign(ctx context.Context, userID, bucketName, key string, ttl time.Duration) (string, time.Time, error) {
	bucket, err := s.ownedBucket(ctx, userID, bucketName)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := s.objects.Get(ctx, bucket.ID, key); err != nil {
		return "", time.Time{}, err
	}

	if ttl <= 0 {
		ttl = s.presignTTL
	}
	token, expiry, err := s.capabilities.Issue(bucketName, key, ttl)
	if err != nil {
		return "", time.Time{}, err
	}

	dl := fmt.Sprintf("/storage/buckets/%s/objects/%s?token=%s",
		url.PathEscape(bucketName), url.PathEscape(key), url.QueryEscape(token))
	return dl, expiry, nil
}

// ownedBucket resolves a bucket by name and verifies ownership. The
// NotFound/denied split here matches the write-path behavior: bucket
// existence is not secret to authenticated users issuing writes.
func (s *Service) ownedBucket(ctx context.Context, userID, bucketName string) (*domain.Bucket, error) {
	bucket, err := s.buckets.GetByName(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	if err := domain.VerifyOwner(userID, bucket.UserID); err != nil {
		return nil, err
	}
	return bucket, nil
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "/\\") {
		return domainerrors.ValidationError{Reason: "object key is required and may not contain path separators"}
	}
	return nil
}
