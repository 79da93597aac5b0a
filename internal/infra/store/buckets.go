package store

import (
	"context"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const (
	bucketKind    = "bucket"
	bucketNameIdx = "bucket/name"
)

// BucketStore implements impls.BucketStore on badger.
type BucketStore struct {
	db *DB
}

func NewBucketStore(db *DB) *BucketStore {
	return &BucketStore{db: db}
}

func (s *BucketStore) Create(_ context.Context, bucket *domain.Bucket) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		idx := idxKey(bucketNameIdx, bucket.Name)
		if _, err := txn.Get(idx); err == nil {
			return domainerrors.ConflictError{Reason: "bucket name already exists"}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(idx, []byte(bucket.ID)); err != nil {
			return err
		}
		return setJSON(txn, recKey(bucketKind, bucket.ID), bucket)
	})
}

func (s *BucketStore) Get(_ context.Context, id string) (*domain.Bucket, error) {
	var bucket domain.Bucket
	err := s.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, recKey(bucketKind, id), &bucket)
	})
	if err != nil {
		return nil, notFound("bucket", err)
	}
	return &bucket, nil
}

func (s *BucketStore) GetByName(_ context.Context, name string) (*domain.Bucket, error) {
	var bucket domain.Bucket
	err := s.db.db.View(func(txn *badger.Txn) error {
		id, err := lookupIndex(txn, idxKey(bucketNameIdx, name))
		if err != nil {
			return err
		}
		return getJSON(txn, recKey(bucketKind, id), &bucket)
	})
	if err != nil {
		return nil, notFound("bucket", err)
	}
	return &bucket, nil
}

func (s *BucketStore) ListByUser(_ context.Context, userID string) ([]domain.Bucket, error) {
	return s.list(func(b *domain.Bucket) bool {
		return b.UserID == userID
	})
}

func (s *BucketStore) List(_ context.Context) ([]domain.Bucket, error) {
	return s.list(func(*domain.Bucket) bool {
		return true
	})
}

func (s *BucketStore) list(keep func(*domain.Bucket) bool) ([]domain.Bucket, error) {
	var out []domain.Bucket
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recKey(bucketKind)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var bucket domain.Bucket
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &bucket)
			})
			if err != nil {
				return err
			}
			if keep(&bucket) {
				out = append(out, bucket)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BucketStore) Delete(_ context.Context, id string) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := recKey(bucketKind, id)
		var bucket domain.Bucket
		if err := getJSON(txn, key, &bucket); err != nil {
			return err
		}
		if err := txn.Delete(idxKey(bucketNameIdx, bucket.Name)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return notFound("bucket", err)
}
