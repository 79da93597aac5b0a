package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancloud/ncp/internal/auth"
	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/infra/blob"
	"github.com/nolancloud/ncp/internal/infra/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	root := t.TempDir()
	db, err := store.Open(filepath.Join(root, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewService(
		store.NewBucketStore(db),
		store.NewObjectStore(db),
		blob.NewFilesystemStore(filepath.Join(root, "storage")),
		auth.NewCapabilitySigner([]byte("capability-test-secret")),
		time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func alice() *domain.Identity { return &domain.Identity{UserID: "alice"} }
func bob() *domain.Identity   { return &domain.Identity{UserID: "bob"} }

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestCreateBucketClaimsGlobalName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	bucket, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", bucket.UserID)

	_, err = svc.CreateBucket(ctx, "bob", "assets", false)
	assert.True(t, domainerrors.IsConflict(err))
}

func TestCreateBucketRejectsPathySeparators(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateBucket(context.Background(), "alice", "a/b", false)
	assert.True(t, domainerrors.IsValidation(err))

	_, err = svc.CreateBucket(context.Background(), "alice", "  ", false)
	assert.True(t, domainerrors.IsValidation(err))
}

func TestDeleteBucketRequiresEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	bucket, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)

	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "text/plain", strings.NewReader("hello"), false)
	require.NoError(t, err)

	err = svc.DeleteBucket(ctx, "alice", bucket.ID)
	assert.True(t, domainerrors.IsConflict(err))

	require.NoError(t, svc.DeleteObject(ctx, "alice", "assets", "a.txt"))
	require.NoError(t, svc.DeleteBucket(ctx, "alice", bucket.ID))
}

func TestDeleteBucketKeepsDistinctDenials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	bucket, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)

	assert.True(t, domainerrors.IsPermissionDenied(svc.DeleteBucket(ctx, "bob", bucket.ID)))
	assert.True(t, domainerrors.IsNotFound(svc.DeleteBucket(ctx, "alice", "no-such-bucket")))
}

func TestPutObjectUpsertsInPlace(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)

	first, err := svc.PutObject(ctx, "alice", "assets", "a.txt", "text/plain", strings.NewReader("v1"), false)
	require.NoError(t, err)

	second, err := svc.PutObject(ctx, "alice", "assets", "a.txt", "text/plain", strings.NewReader("longer v2"), false)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, int64(len("longer v2")), second.Size)

	obj, rc, err := svc.Open(ctx, alice(), "assets", "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "longer v2", readAll(t, rc))
	assert.Equal(t, second.Size, obj.Size)
}

func TestPutObjectRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)

	_, err = svc.PutObject(ctx, "bob", "assets", "a.txt", "", strings.NewReader("x"), false)
	assert.True(t, domainerrors.IsPermissionDenied(err))
}

func TestOpenPrivateObjectOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("secret"), false)
	require.NoError(t, err)

	_, rc, err := svc.Open(ctx, alice(), "assets", "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "secret", readAll(t, rc))

	_, _, err = svc.Open(ctx, bob(), "assets", "a.txt", "")
	assert.True(t, domainerrors.IsPermissionDenied(err))

	_, _, err = svc.Open(ctx, nil, "assets", "a.txt", "")
	assert.True(t, domainerrors.IsPermissionDenied(err))
}

func TestOpenPublicPrecedence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// Public bucket, private object flag: bucket wins.
	_, err := svc.CreateBucket(ctx, "alice", "pub", true)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "pub", "a.txt", "", strings.NewReader("open"), false)
	require.NoError(t, err)

	_, rc, err := svc.Open(ctx, nil, "pub", "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "open", readAll(t, rc))

	// Private bucket, public object flag: object wins.
	_, err = svc.CreateBucket(ctx, "alice", "priv", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "priv", "b.txt", "", strings.NewReader("shared"), true)
	require.NoError(t, err)

	_, rc, err = svc.Open(ctx, nil, "priv", "b.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "shared", readAll(t, rc))
}

func TestPresignRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("payload"), false)
	require.NoError(t, err)

	url, expiry, err := svc.Presign(ctx, "alice", "assets", "a.txt", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "/storage/buckets/assets/objects/a.txt?token=")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)

	token := url[strings.Index(url, "token=")+len("token="):]
	_, rc, err := svc.Open(ctx, nil, "assets", "a.txt", token)
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, rc))
}

func TestPresignedTokenBoundToExactObject(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("a"), false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "b.txt", "", strings.NewReader("b"), false)
	require.NoError(t, err)

	url, _, err := svc.Presign(ctx, "alice", "assets", "a.txt", 0)
	require.NoError(t, err)
	token := url[strings.Index(url, "token=")+len("token="):]

	_, _, err = svc.Open(ctx, nil, "assets", "b.txt", token)
	assert.True(t, domainerrors.IsInvalidCapability(err))
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("a"), false)
	require.NoError(t, err)

	// Presign never issues an expired token, so mint one directly with
	// the service's secret.
	signer := auth.NewCapabilitySigner([]byte("capability-test-secret"))
	token, _, err := signer.Issue("assets", "a.txt", -time.Minute)
	require.NoError(t, err)

	_, _, err = svc.Open(ctx, nil, "assets", "a.txt", token)
	assert.True(t, domainerrors.IsInvalidCapability(err))
}

func TestTokenFromDifferentSecretRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("a"), false)
	require.NoError(t, err)

	forged, _, err := auth.NewCapabilitySigner([]byte("other-secret")).Issue("assets", "a.txt", time.Hour)
	require.NoError(t, err)

	_, _, err = svc.Open(ctx, nil, "assets", "a.txt", forged)
	assert.True(t, domainerrors.IsInvalidCapability(err))
}

func TestPresignRequiresOwnerAndExistingObject(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("a"), false)
	require.NoError(t, err)

	_, _, err = svc.Presign(ctx, "bob", "assets", "a.txt", 0)
	assert.True(t, domainerrors.IsPermissionDenied(err))

	_, _, err = svc.Presign(ctx, "alice", "assets", "missing.txt", 0)
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestDeleteObjectRemovesPayload(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBucket(ctx, "alice", "assets", false)
	require.NoError(t, err)
	_, err = svc.PutObject(ctx, "alice", "assets", "a.txt", "", strings.NewReader("a"), false)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteObject(ctx, "alice", "assets", "a.txt"))

	_, _, err = svc.Open(ctx, alice(), "assets", "a.txt", "")
	assert.True(t, domainerrors.IsNotFound(err))
}
