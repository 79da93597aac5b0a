package store

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const (
	apiKeyKind   = "apikey"
	apiKeyValIdx = "apikey/key"
)

// APIKeyStore implements impls.APIKeyStore on badger.
type APIKeyStore struct {
	db *DB
}

func NewAPIKeyStore(db *DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

func (s *APIKeyStore) Create(_ context.Context, key *domain.APIKey) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		idx := idxKey(apiKeyValIdx, key.Key)
		if _, err := txn.Get(idx); err == nil {
			return domainerrors.ConflictError{Reason: "api key already exists"}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(idx, []byte(key.ID)); err != nil {
			return err
		}
		return setJSON(txn, recKey(apiKeyKind, key.ID), key)
	})
}

func (s *APIKeyStore) GetByKey(_ context.Context, value string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.db.View(func(txn *badger.Txn) error {
		id, err := lookupIndex(txn, idxKey(apiKeyValIdx, value))
		if err != nil {
			return err
		}
		return getJSON(txn, recKey(apiKeyKind, id), &key)
	})
	if err != nil {
		return nil, notFound("api key", err)
	}
	return &key, nil
}

func (s *APIKeyStore) Touch(_ context.Context, id string, when time.Time) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := recKey(apiKeyKind, id)
		var rec domain.APIKey
		if err := getJSON(txn, key, &rec); err != nil {
			return err
		}
		rec.LastUsedAt = when
		return setJSON(txn, key, &rec)
	})
	return notFound("api key", err)
}
