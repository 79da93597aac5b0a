package store

import (
	"encoding/json"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

// DB wraps a badger database holding json-encoded records under
// "rec/<kind>/..." keys and unique-index entries under "idx/...". Index
// and record writes share a transaction, which is what enforces the
// unique constraints (email, container id, bucket name, api key).
type DB struct {
	db *badger.DB
}

// Open opens (or creates) the record store at path.
func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func recKey(kind string, parts ...string) []byte {
	key := "rec/" + kind
	for _, p := range parts {
		key += "/" + p
	}
	return []byte(key)
}

func idxKey(index, value string) []byte {
	return []byte("idx/" + index + "/" + value)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(v []byte) error {
		return json.Unmarshal(v, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// lookupIndex resolves a unique-index entry to the referenced record id.
func lookupIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err != nil {
		return "", err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func notFound(resource string, err error) error {
	if err == badger.ErrKeyNotFound {
		return domainerrors.NotFoundError{Resource: resource}
	}
	return err
}
