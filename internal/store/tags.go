package store

import (
	"bytes"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/flitshare/flit/pkg/blob"
)

// TempTag protects a newly ingested blob from reclamation until a durable
// reference (the stored collection) exists. Dropping the tag removes the
// protection; it does not delete the blob.
type TempTag struct {
	store *Store
	id    string
	hash  blob.Hash
	once  sync.Once
}

// Hash returns the hash the tag protects.
func (t *TempTag) Hash() blob.Hash {
	return t.hash
}

// Drop releases the tag. Safe to call more than once.
func (t *TempTag) Drop() {
	t.once.Do(func() {
		_ = t.store.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(tagKeyPrefix + t.id))
		})
	})
}

// newTag records a tag for h and returns it.
func (s *Store) newTag(h blob.Hash) (*TempTag, error) {
	id := uuid.NewString()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tagKeyPrefix+id), h[:])
	})
	if err != nil {
		return nil, err
	}
	return &TempTag{store: s, id: id, hash: h}, nil
}

// DropTags drops a batch of tags.
func DropTags(tags []*TempTag) {
	for _, t := range tags {
		t.Drop()
	}
}

// ReclaimUntagged deletes every blob that no tag currently protects. Called
// after an aborted assembly so partially ingested content is not retained
// with a public address.
func (s *Store) ReclaimUntagged() error {
	tagged := make(map[blob.Hash]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(tagKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var h blob.Hash
				if err := h.UnmarshalBinary(val); err != nil {
					return err
				}
				tagged[h] = struct{}{}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	var stale []blob.Hash
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(blobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			hexPart := bytes.TrimPrefix(key, prefix)
			h, err := blob.FromHex(string(hexPart))
			if err != nil {
				continue
			}
			if _, ok := tagged[h]; !ok {
				stale = append(stale, h)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, h := range stale {
		if err := os.Remove(s.blobPath(h)); err != nil && !os.IsNotExist(err) {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(blobKey(h))
		})
		if err != nil {
			return err
		}
	}
	return nil
}
