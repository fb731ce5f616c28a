// Package filestore implements hive.Snapshotter as a single JSON document
// written atomically, for callers that want the simplest possible
// persistence policy and don't need badger's transactional key-value
// model.
package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/brinklabs/hive"
)

// jsonPair mirrors hive.StoragePair with exported, JSON-friendly fields;
// the entity id is serialized in its compact integer form.
type jsonPair struct {
	Id    uint64          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Decoder turns a storage's raw JSON value back into the concrete Go value
// hive.Restore will type-assert against. The file format itself carries no
// type information, so the caller must register one Decoder per storage
// name it wants Load to reconstruct.
type Decoder func(json.RawMessage) (any, error)

// Store is a hive.Snapshotter backed by one JSON file on disk.
type Store struct {
	Path     string
	Decoders map[string]Decoder
}

// New returns a Store that reads/writes path.
func New(path string) *Store {
	return &Store{Path: path, Decoders: make(map[string]Decoder)}
}

// Register associates a Decoder with a storage name, to be consulted by
// Load.
func (s *Store) Register(storageName string, dec Decoder) {
	if s.Decoders == nil {
		s.Decoders = make(map[string]Decoder)
	}
	s.Decoders[storageName] = dec
}

// Save serializes w's snapshot to a map shape
// ({ "storage-name": [[id, value], ...] }) and writes it to Path with
// atomic.WriteFile so a crash mid-write never corrupts the previous
// snapshot.
func (s *Store) Save(w *hive.World, opts hive.SerializeOptions) error {
	snap := hive.Snapshot(w)
	out := make(map[string][]jsonPair, len(snap.Storages))
	for name, pairs := range snap.Storages {
		jp := make([]jsonPair, len(pairs))
		for i, p := range pairs {
			raw, err := json.Marshal(p.Value)
			if err != nil {
				return fmt.Errorf("filestore: encoding %s/%v: %w", name, p.Id, err)
			}
			jp[i] = jsonPair{Id: p.Id.Compact(), Value: raw}
		}
		out[name] = jp
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshaling snapshot: %w", err)
	}
	return atomic.WriteFile(s.Path, bytes.NewReader(data))
}

// Load reads Path, decodes each storage's pairs with its registered
// Decoder (see Register), and applies the result to w via hive.Restore. A
// storage present in the file with no registered Decoder is skipped.
func (s *Store) Load(w *hive.World, opts hive.DeserializeOptions) error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("filestore: reading %s: %w", s.Path, err)
	}
	var raw map[string][]jsonPair
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filestore: parsing %s: %w", s.Path, err)
	}
	snap := hive.WorldSnapshot{Storages: make(map[string][]hive.StoragePair)}
	for name, pairs := range raw {
		dec, ok := s.Decoders[name]
		if !ok {
			continue
		}
		out := make([]hive.StoragePair, 0, len(pairs))
		for _, p := range pairs {
			value, err := dec(p.Value)
			if err != nil {
				return fmt.Errorf("filestore: decoding %s/%d: %w", name, p.Id, err)
			}
			out = append(out, hive.StoragePair{Id: hive.FromCompact(p.Id), Value: value})
		}
		snap.Storages[name] = out
	}
	return hive.Restore(w, snap, opts.Policy)
}
