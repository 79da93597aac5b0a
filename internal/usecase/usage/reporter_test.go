package usage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancloud/ncp/internal/domain"
	"github.com/nolancloud/ncp/internal/infra/store"
)

func TestReportSumsObjectsPerUser(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := store.NewUserStore(db)
	buckets := store.NewBucketStore(db)
	objects := store.NewObjectStore(db)

	require.NoError(t, users.Create(ctx, &domain.User{ID: "alice", Email: "alice@example.com"}))
	require.NoError(t, users.Create(ctx, &domain.User{ID: "bob", Email: "bob@example.com"}))

	require.NoError(t, buckets.Create(ctx, &domain.Bucket{ID: "b1", Name: "alice-a", UserID: "alice"}))
	require.NoError(t, buckets.Create(ctx, &domain.Bucket{ID: "b2", Name: "alice-b", UserID: "alice"}))
	require.NoError(t, buckets.Create(ctx, &domain.Bucket{ID: "b3", Name: "bob-a", UserID: "bob"}))

	require.NoError(t, objects.Put(ctx, &domain.Object{BucketID: "b1", Key: "x", Size: 100}))
	require.NoError(t, objects.Put(ctx, &domain.Object{BucketID: "b2", Key: "y", Size: 250}))
	require.NoError(t, objects.Put(ctx, &domain.Object{BucketID: "b3", Key: "z", Size: 7}))

	reporter := New(users, buckets, objects, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	reports, err := reporter.Report(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byUser := map[string]domain.UsageReport{}
	for _, rep := range reports {
		byUser[rep.UserID] = rep
	}
	assert.Equal(t, int64(350), byUser["alice"].Bytes)
	assert.Equal(t, 2, byUser["alice"].Objects)
	assert.Equal(t, int64(7), byUser["bob"].Bytes)
	assert.Equal(t, 1, byUser["bob"].Objects)
}

func TestReportIncludesUsersWithoutStorage(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := store.NewUserStore(db)
	require.NoError(t, users.Create(ctx, &domain.User{ID: "carol", Email: "carol@example.com"}))

	reporter := New(users, store.NewBucketStore(db), store.NewObjectStore(db), slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	reports, err := reporter.Report(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(0), reports[0].Bytes)
}
