package store

import (
	"context"
	"encoding/json"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const (
	userKind     = "user"
	userEmailIdx = "user/email"
)

// userRecord is the persisted form. The API-facing User type never
// serializes its password hash, so the record carries it explicitly.
type userRecord struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

func toRecord(user *domain.User) *userRecord {
	return &userRecord{User: *user, PasswordHash: user.PasswordHash}
}

func (r *userRecord) toUser() domain.User {
	user := r.User
	user.PasswordHash = r.PasswordHash
	return user
}

// UserStore implements impls.UserStore on badger.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	email := strings.ToLower(user.Email)
	return s.db.db.Update(func(txn *badger.Txn) error {
		idx := idxKey(userEmailIdx, email)
		if _, err := txn.Get(idx); err == nil {
			return domainerrors.ConflictError{Reason: "email already in use"}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(idx, []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, recKey(userKind, user.ID), toRecord(user))
	})
}

func (s *UserStore) Get(_ context.Context, id string) (*domain.User, error) {
	var rec userRecord
	err := s.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, recKey(userKind, id), &rec)
	})
	if err != nil {
		return nil, notFound("user", err)
	}
	user := rec.toUser()
	return &user, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var rec userRecord
	err := s.db.db.View(func(txn *badger.Txn) error {
		id, err := lookupIndex(txn, idxKey(userEmailIdx, strings.ToLower(email)))
		if err != nil {
			return err
		}
		return getJSON(txn, recKey(userKind, id), &rec)
	})
	if err != nil {
		return nil, notFound("user", err)
	}
	user := rec.toUser()
	return &user, nil
}

func (s *UserStore) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recKey(userKind)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec userRecord
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			})
			if err != nil {
				return err
			}
			out = append(out, rec.toUser())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
