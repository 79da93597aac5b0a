package store

import (
	"context"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const (
	instanceKind   = "instance"
	instanceCidIdx = "instance/cid"
)

// InstanceStore implements impls.InstanceStore on badger.
type InstanceStore struct {
	db *DB
}

func NewInstanceStore(db *DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func (s *InstanceStore) Create(_ context.Context, inst *domain.Instance) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		idx := idxKey(instanceCidIdx, inst.ContainerID)
		if _, err := txn.Get(idx); err == nil {
			return domainerrors.ConflictError{Reason: "container id already tracked"}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(idx, []byte(inst.ID)); err != nil {
			return err
		}
		return setJSON(txn, recKey(instanceKind, inst.ID), inst)
	})
}

func (s *InstanceStore) Get(_ context.Context, id string) (*domain.Instance, error) {
	var inst domain.Instance
	err := s.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, recKey(instanceKind, id), &inst)
	})
	if err != nil {
		return nil, notFound("instance", err)
	}
	return &inst, nil
}

func (s *InstanceStore) ListByUser(_ context.Context, userID string) ([]domain.Instance, error) {
	return s.list(func(inst *domain.Instance) bool {
		return inst.UserID == userID
	})
}

func (s *InstanceStore) ListActive(_ context.Context) ([]domain.Instance, error) {
	return s.list(func(inst *domain.Instance) bool {
		return !inst.Status.Terminal()
	})
}

func (s *InstanceStore) list(keep func(*domain.Instance) bool) ([]domain.Instance, error) {
	var out []domain.Instance
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recKey(instanceKind)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var inst domain.Instance
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &inst)
			})
			if err != nil {
				return err
			}
			if keep(&inst) {
				out = append(out, inst)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *InstanceStore) UpdateStatus(_ context.Context, id string, status domain.InstanceStatus) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := recKey(instanceKind, id)
		var inst domain.Instance
		if err := getJSON(txn, key, &inst); err != nil {
			return err
		}
		inst.Status = status
		return setJSON(txn, key, &inst)
	})
	return notFound("instance", err)
}

func (s *InstanceStore) Delete(_ context.Context, id string) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := recKey(instanceKind, id)
		var inst domain.Instance
		if err := getJSON(txn, key, &inst); err != nil {
			return err
		}
		if err := txn.Delete(idxKey(instanceCidIdx, inst.ContainerID)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return notFound("instance", err)
}
