// Package badgerstore implements hive.Snapshotter on top of BadgerDB,
// keeping each storage's (EntityId, value) pairs as individual key-value
// entries rather than one big blob, so a snapshot can be queried or
// incrementally updated without a full rewrite.
package badgerstore

import (
	"bytes"
	"encoding/gob"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/brinklabs/hive"
)

// Store is a hive.Snapshotter backed by an open *badger.DB. Keys are
// "storageName/entityID" (entityID as its compact uint64 form); values are
// gob-encoded.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger database at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Register tells gob how to decode values of type T out of an interface
// slot. gob only carries a concrete type's name across the wire when that
// type has been registered on both ends; call Register once per component
// type a Store will Save or Load before doing either.
func Register[T any]() {
	var zero T
	gob.Register(zero)
}

func keyFor(storage string, id hive.EntityId) []byte {
	return []byte(fmt.Sprintf("%s/%d", storage, id.Compact()))
}

// Save writes every entry of w's snapshot into one badger transaction per
// storage (hive.Snapshotter).
func (s *Store) Save(w *hive.World, opts hive.SerializeOptions) error {
	snap := hive.Snapshot(w)
	for storageName, pairs := range snap.Storages {
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, p := range pairs {
				var buf bytes.Buffer
				if err := gob.NewEncoder(&buf).Encode(&p.Value); err != nil {
					return fmt.Errorf("badgerstore: encoding %s/%v: %w", storageName, p.Id, err)
				}
				if err := txn.Set(keyFor(storageName, p.Id), buf.Bytes()); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Load iterates every key this store holds, grouping by storage name
// prefix, then applies the reconstructed WorldSnapshot via hive.Restore.
//
// Because badger stores values as opaque gob blobs without the original
// Go type attached, Load requires the caller to have already registered
// every component type it expects by touching it once (e.g. via
// hive.ViewMutOf[T]) so hive.Restore's insertFromAny type assertion has
// somewhere to land; an unregistered storage name is reported as an error
// rather than silently dropped.
func (s *Store) Load(w *hive.World, opts hive.DeserializeOptions) error {
	snap := hive.WorldSnapshot{Storages: make(map[string][]hive.StoragePair)}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			storageName, idStr, ok := splitKey(key)
			if !ok {
				continue
			}
			var id uint64
			if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
				continue
			}
			var value any
			if err := item.Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&value)
			}); err != nil {
				return fmt.Errorf("badgerstore: decoding %s: %w", key, err)
			}
			snap.Storages[storageName] = append(snap.Storages[storageName], hive.StoragePair{
				Id:    hive.FromCompact(id),
				Value: value,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return hive.Restore(w, snap, opts.Policy)
}

func splitKey(key string) (storage, id string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
