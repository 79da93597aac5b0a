package store

import (
	"context"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nolancloud/ncp/internal/domain"
)

const objectKind = "object"

// ObjectStore implements impls.ObjectStore on badger. Object records live
// under "rec/object/<bucket id>/<key>"; bucket ids are uuids, so the
// per-bucket prefix is unambiguous even for keys containing slashes.
type ObjectStore struct {
	db *DB
}

func NewObjectStore(db *DB) *ObjectStore {
	return &ObjectStore{db: db}
}

func (s *ObjectStore) Put(_ context.Context, obj *domain.Object) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, recKey(objectKind, obj.BucketID, obj.Key), obj)
	})
}

func (s *ObjectStore) Get(_ context.Context, bucketID, key string) (*domain.Object, error) {
	var obj domain.Object
	err := s.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, recKey(objectKind, bucketID, key), &obj)
	})
	if err != nil {
		return nil, notFound("object", err)
	}
	return &obj, nil
}

func (s *ObjectStore) ListByBucket(_ context.Context, bucketID string) ([]domain.Object, error) {
	var out []domain.Object
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recKey(objectKind, bucketID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var obj domain.Object
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &obj)
			})
			if err != nil {
				return err
			}
			out = append(out, obj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ObjectStore) Count(_ context.Context, bucketID string) (int, error) {
	count := 0
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recKey(objectKind, bucketID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *ObjectStore) Delete(_ context.Context, bucketID, key string) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		recordKey := recKey(objectKind, bucketID, key)
		if _, err := txn.Get(recordKey); err != nil {
			return err
		}
		return txn.Delete(recordKey)
	})
	return notFound("object", err)
}
