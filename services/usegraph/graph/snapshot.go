// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key prefixes for graph snapshots.
const (
	keyPrefixSnap      = "usegraph:snap:"
	keyPrefixSnapIndex = "usegraph:snap:index:"
	keyPrefixUniverse  = "usegraph:universe:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// ErrSnapshotNotFound is returned when a snapshot or cached universe is absent.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotMetadata contains metadata about a saved graph snapshot.
type SnapshotMetadata struct {
	// SnapshotID is the unique identifier for this snapshot.
	// Derived from SHA256(Root + BuiltAtMilli)[:16].
	SnapshotID string `json:"snapshot_id"`

	// Root is the scanned project or folder path.
	Root string `json:"root"`

	// RootHash is SHA256(Root)[:16] for key grouping.
	RootHash string `json:"root_hash"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// EntityCount is the number of entities in the graph.
	EntityCount int `json:"entity_count"`

	// EdgeCount is the number of references in the graph.
	EdgeCount int `json:"edge_count"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the gzip-compressed JSON payload in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 hash of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// SnapshotManager manages saving and loading graph snapshots in BadgerDB.
//
// Description:
//
//	Stores scan results as gzip-compressed JSON plus metadata, and caches
//	universe scans keyed by a caller-supplied fingerprint so supplementary
//	closure merges do not rescan an unchanged universe.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type SnapshotManager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotManager creates a new SnapshotManager.
//
// Inputs:
//
//	db - An opened BadgerDB instance. Must not be nil. Owned by the caller.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*SnapshotManager - The configured manager.
//	error - Non-nil if db or logger is nil.
func NewSnapshotManager(db *badger.DB, logger *slog.Logger) (*SnapshotManager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &SnapshotManager{db: db, logger: logger}, nil
}

// OpenSnapshotDB opens (or creates) the snapshot database in dir.
func OpenSnapshotDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db at %s: %w", dir, err)
	}
	return db, nil
}

// Save persists a graph snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	g - The graph to snapshot.
//	root - The scanned path the graph was built from.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*SnapshotMetadata - Metadata about the saved snapshot.
//	error - Non-nil if serialization or storage fails.
//
// Key Schema:
//
//	usegraph:snap:{rootHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	usegraph:snap:{rootHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	usegraph:snap:{rootHash}:latest            → snapshotID
//	usegraph:snap:index:{snapshotID}           → rootHash
func (m *SnapshotManager) Save(ctx context.Context, g Graph, root, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builtAt := time.Now().UnixMilli()
	sg := g.ToSerializable(root, builtAt)
	compressedData, err := compressGraph(sg)
	if err != nil {
		return nil, err
	}

	rootHash := RootHash(root)
	snapshotID := hashString(fmt.Sprintf("%s:%d:%s", root, builtAt, sg.GraphHash))[:16]

	meta := &SnapshotMetadata{
		SnapshotID:     snapshotID,
		Root:           root,
		RootHash:       rootHash,
		GraphHash:      sg.GraphHash,
		Label:          label,
		CreatedAtMilli: builtAt,
		EntityCount:    len(g),
		EdgeCount:      g.EdgeCount(),
		SchemaVersion:  GraphSchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + rootHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(rootHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("root", root),
		slog.Int("entity_count", meta.EntityCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a graph snapshot by its ID.
//
// Outputs:
//
//	Graph - The reconstructed graph.
//	*SnapshotMetadata - The snapshot metadata.
//	error - ErrSnapshotNotFound (wrapped) if absent, or a decoding error.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}

	rootHash, err := m.getRootHash(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return m.loadByKeys(rootHash, snapshotID)
}

// LoadLatest loads the most recent snapshot saved for root.
func (m *SnapshotManager) LoadLatest(ctx context.Context, root string) (Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}

	rootHash := RootHash(root)
	var snapshotID string
	err := m.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, keyPrefixSnap+rootHash+keySuffixLatest)
		snapshotID = string(v)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", root, err)
	}
	return m.loadByKeys(rootHash, snapshotID)
}

// List returns metadata for snapshots, newest first.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	root - Optional filter. If empty, returns snapshots of every root.
//	limit - Maximum number of results. If <= 0, defaults to 100.
func (m *SnapshotManager) List(ctx context.Context, root string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := keyPrefixSnap
	if root != "" {
		prefix = keyPrefixSnap + RootHash(root) + ":"
	}

	var results []*SnapshotMetadata
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta SnapshotMetadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				m.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot and, if it was the latest for its root, the
// latest pointer.
func (m *SnapshotManager) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}

	rootHash, err := m.getRootHash(snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	dataKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + rootHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		for _, k := range []string{dataKey, metaKey, indexKey} {
			if err := txn.Delete([]byte(k)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", k, err)
			}
		}
		current, err := getValue(txn, latestKey)
		if err == nil && string(current) == snapshotID {
			if err := txn.Delete([]byte(latestKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// SaveUniverse caches a universe scan under fingerprint.
//
// Description:
//
//	The fingerprint identifies the universe contents (path plus file
//	stamps); a changed universe simply misses the cache.
func (m *SnapshotManager) SaveUniverse(ctx context.Context, fingerprint string, g Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := compressGraph(g.ToSerializable(fingerprint, time.Now().UnixMilli()))
	if err != nil {
		return err
	}
	key := keyPrefixUniverse + fingerprint
	if err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("caching universe %s: %w", fingerprint, err)
	}
	m.logger.Debug("universe cached", slog.String("fingerprint", fingerprint), slog.Int("entity_count", len(g)))
	return nil
}

// LoadUniverse returns a cached universe scan, or ErrSnapshotNotFound.
func (m *SnapshotManager) LoadUniverse(ctx context.Context, fingerprint string) (Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := m.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, keyPrefixUniverse+fingerprint)
		data = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading universe %s: %w", fingerprint, err)
	}
	sg, err := decompressGraph(data)
	if err != nil {
		return nil, fmt.Errorf("decoding universe %s: %w", fingerprint, err)
	}
	return FromSerializable(sg)
}

// loadByKeys loads a graph using known rootHash and snapshotID.
func (m *SnapshotManager) loadByKeys(rootHash, snapshotID string) (Graph, *SnapshotMetadata, error) {
	dataKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + rootHash + ":" + snapshotID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		if compressedData, err = getValue(txn, dataKey); err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, err)
		}
		if metaJSON, err = getValue(txn, metaKey); err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if actual := hashBytes(compressedData); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected hash %s, got %s", snapshotID, meta.ContentHash, actual)
	}

	sg, err := decompressGraph(compressedData)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot %s: %w", snapshotID, err)
	}
	g, err := FromSerializable(sg)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing graph for %s: %w", snapshotID, err)
	}
	return g, &meta, nil
}

// getRootHash retrieves the root hash for a snapshot ID from the reverse index.
func (m *SnapshotManager) getRootHash(snapshotID string) (string, error) {
	var rootHash string
	err := m.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, keyPrefixSnapIndex+snapshotID)
		rootHash = string(v)
		return err
	})
	return rootHash, err
}

// getValue copies the value at key, mapping a missing key to ErrSnapshotNotFound.
func getValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func compressGraph(sg *SerializableGraph) ([]byte, error) {
	jsonData, err := json.Marshal(sg)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}
	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return compressed.Bytes(), nil
}

func decompressGraph(data []byte) (*SerializableGraph, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading decompressed data: %w", err)
	}
	var sg SerializableGraph
	if err := json.Unmarshal(jsonData, &sg); err != nil {
		return nil, fmt.Errorf("unmarshaling graph: %w", err)
	}
	return &sg, nil
}

// RootHash returns SHA256(root)[:16] for use as a key prefix.
func RootHash(root string) string {
	return hashString(root)[:16]
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// isMetaKey returns true if the key ends with the metadata suffix.
func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}
