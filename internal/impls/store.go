package impls

import (
	"context"
	"time"

	"github.com/nolancloud/ncp/internal/domain"
)

// InstanceStore persists the control plane's view of containers.
type InstanceStore interface {
	// Create fails with ConflictError when the runtime container id is
	// already tracked.
	Create(ctx context.Context, inst *domain.Instance) error
	Get(ctx context.Context, id string) (*domain.Instance, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Instance, error)
	// ListActive returns every instance whose status is not terminated.
	ListActive(ctx context.Context) ([]domain.Instance, error)
	UpdateStatus(ctx context.Context, id string, status domain.InstanceStatus) error
	Delete(ctx context.Context, id string) error
}

// UserStore persists accounts. Email is unique.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// APIKeyStore persists long-lived credentials. The opaque key value is
// unique.
type APIKeyStore interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByKey(ctx context.Context, key string) (*domain.APIKey, error)
	// Touch records a successful authentication.
	Touch(ctx context.Context, id string, when time.Time) error
}

// BucketStore persists buckets. Names are globally unique, not per user.
type BucketStore interface {
	Create(ctx context.Context, bucket *domain.Bucket) error
	Get(ctx context.Context, id string) (*domain.Bucket, error)
	GetByName(ctx context.Context, name string) (*domain.Bucket, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Bucket, error)
	List(ctx context.Context) ([]domain.Bucket, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore persists object metadata keyed by (bucket id, key).
type ObjectStore interface {
	// Put has upsert semantics: an existing (bucket id, key) record is
	// replaced in place.
	Put(ctx context.Context, obj *domain.Object) error
	Get(ctx context.Context, bucketID, key string) (*domain.Object, error)
	ListByBucket(ctx context.Context, bucketID string) ([]domain.Object, error)
	Count(ctx context.Context, bucketID string) (int, error)
	Delete(ctx context.Context, bucketID, key string) error
}
