package store

import (
	"fmt"

	"github.com/flitshare/flit/pkg/blob"
	"github.com/flitshare/flit/pkg/collection"
)

// PutCollection serializes a collection and stores it as a blob. The
// returned tag is the durable reference protecting every member blob; only
// after it exists may the per-file temp tags be dropped.
func (s *Store) PutCollection(c *collection.Collection) (*TempTag, error) {
	data, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize collection: %w", err)
	}
	return s.PutBlob(data)
}

// LoadCollection loads and decodes a collection blob.
func (s *Store) LoadCollection(h blob.Hash) (*collection.Collection, error) {
	data, err := s.GetBlob(h)
	if err != nil {
		return nil, err
	}
	var c collection.Collection
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &c, nil
}
