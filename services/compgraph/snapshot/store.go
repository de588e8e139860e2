// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot persists analysis results in BadgerDB and compares them.
package snapshot

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
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// SchemaVersion is bumped whenever model.Result changes incompatibly.
const SchemaVersion = "1"

// Key layout:
//
//	compgraph:snap:{projectHash}:{id}:data → gzip(JSON(model.Result))
//	compgraph:snap:{projectHash}:{id}:meta → JSON(Metadata)
//	compgraph:snap:{projectHash}:latest    → id
//	compgraph:snap:index:{id}              → projectHash
const (
	keyPrefix       = "compgraph:snap:"
	keyPrefixIndex  = "compgraph:snap:index:"
	keySuffixData   = ":data"
	keySuffixMeta   = ":meta"
	keySuffixLatest = ":latest"

	// DefaultListLimit applies when List is called with a non-positive limit.
	DefaultListLimit = 100
)

var (
	// ErrNotFound is returned when a snapshot or latest pointer does not exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrIntegrity is returned when stored data does not match its content hash.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)

// Metadata describes one saved result.
type Metadata struct {
	// ID is sha256(project + ":" + ResultHash)[:16]. Saving an identical
	// result for the same project reuses the ID.
	ID string `json:"id"`

	Project     string `json:"project"`
	ProjectHash string `json:"project_hash"`

	// ResultHash is the sha256 of the result's canonical JSON.
	ResultHash string `json:"result_hash"`

	Label          string `json:"label,omitempty"`
	CreatedAtMilli int64  `json:"created_at_milli"`

	ComponentCount int `json:"component_count"`
	PatternCount   int `json:"pattern_count"`
	FlowCount      int `json:"flow_count"`

	SchemaVersion  string `json:"schema_version"`
	CompressedSize int64  `json:"compressed_size"`

	// ContentHash is the sha256 of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// Store saves and loads results.
//
// Thread Safety: Safe for concurrent use. BadgerDB provides transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	ownsDB bool
	now    func() time.Time
}

// NewStore wraps an opened BadgerDB. The caller keeps ownership of db.
//
// Outputs:
//
//	*Store - The store.
//	error - Non-nil if db or logger is nil.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Open opens a BadgerDB at dir and returns a Store that owns it. An empty
// dir opens an in-memory database.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db %q: %w", dir, err)
	}
	s, err := NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Close releases the database when the Store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Save persists result under label.
//
// Description:
//
//	The result is marshaled to JSON, gzip-compressed and written together
//	with its metadata in one transaction. The project's latest pointer is
//	moved to the new snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	result - The analysis result. Must not be nil.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*Metadata - Metadata of the saved snapshot.
//	error - Non-nil if encoding or storage fails.
func (s *Store) Save(ctx context.Context, result *model.Result, label string) (*Metadata, error) {
	if result == nil {
		return nil, fmt.Errorf("result must not be nil")
	}
	ctx, span := startStoreSpan(ctx, "snapshot.Store.Save", result.Project)
	defer span.End()

	if err := ctx.Err(); err != nil {
		setStoreSpanError(span, err)
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		setStoreSpanError(span, err)
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	compressed, err := compress(payload)
	if err != nil {
		setStoreSpanError(span, err)
		return nil, err
	}

	resultHash := hashBytes(payload)
	projectHash := ProjectHash(result.Project)
	id := hashString(result.Project + ":" + resultHash)[:16]

	meta := &Metadata{
		ID:             id,
		Project:        result.Project,
		ProjectHash:    projectHash,
		ResultHash:     resultHash,
		Label:          label,
		CreatedAtMilli: s.now().UnixMilli(),
		ComponentCount: len(result.Components),
		PatternCount:   len(result.Patterns),
		FlowCount:      flowCount(result),
		SchemaVersion:  SchemaVersion,
		CompressedSize: int64(len(compressed)),
		ContentHash:    hashBytes(compressed),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		setStoreSpanError(span, err)
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		writes := []struct {
			key, what string
			val       []byte
		}{
			{dataKey(projectHash, id), "data", compressed},
			{metaKey(projectHash, id), "metadata", metaJSON},
			{latestKey(projectHash), "latest pointer", []byte(id)},
			{indexKey(id), "reverse index", []byte(projectHash)},
		}
		for _, w := range writes {
			if err := txn.Set([]byte(w.key), w.val); err != nil {
				return fmt.Errorf("storing %s: %w", w.what, err)
			}
		}
		return nil
	})
	if err != nil {
		setStoreSpanError(span, err)
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.String("snapshot_id", id),
		slog.String("project", result.Project),
		slog.Int("components", meta.ComponentCount),
		slog.Int("patterns", meta.PatternCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load returns the snapshot with the given ID.
//
// Outputs:
//
//	*model.Result - The stored result.
//	*Metadata - Its metadata.
//	error - ErrNotFound, ErrIntegrity, or a decoding error.
func (s *Store) Load(ctx context.Context, id string) (*model.Result, *Metadata, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("snapshot id must not be empty")
	}
	ctx, span := startStoreSpan(ctx, "snapshot.Store.Load", id)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("loading snapshot: %w", err)
	}
	projectHash, err := s.readString(indexKey(id))
	if err != nil {
		setStoreSpanError(span, err)
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", id, err)
	}
	result, meta, err := s.load(projectHash, id)
	if err != nil {
		setStoreSpanError(span, err)
		return nil, nil, err
	}
	return result, meta, nil
}

// LoadLatest returns the most recently saved snapshot of a project.
func (s *Store) LoadLatest(ctx context.Context, projectHash string) (*model.Result, *Metadata, error) {
	if projectHash == "" {
		return nil, nil, fmt.Errorf("project hash must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	id, err := s.readString(latestKey(projectHash))
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", projectHash, err)
	}
	return s.load(projectHash, id)
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	projectHash - Optional project filter. Empty lists every project.
//	limit - Maximum results. Non-positive means DefaultListLimit.
func (s *Store) List(ctx context.Context, projectHash string, limit int) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	prefix := keyPrefix
	if projectHash != "" {
		prefix = keyPrefix + projectHash + ":"
	}

	out := make([]*Metadata, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}
			var meta Metadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				s.logger.Warn("skipping corrupt snapshot metadata",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAtMilli != out[j].CreatedAtMilli {
			return out[i].CreatedAtMilli > out[j].CreatedAtMilli
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a snapshot. The project's latest pointer is removed when
// it names the deleted snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("snapshot id must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	projectHash, err := s.readString(indexKey(id))
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", id, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{dataKey(projectHash, id), metaKey(projectHash, id), indexKey(id)} {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}

		item, err := txn.Get([]byte(latestKey(projectHash)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading latest pointer: %w", err)
		}
		latest, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("reading latest pointer: %w", err)
		}
		if string(latest) == id {
			return txn.Delete([]byte(latestKey(projectHash)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}

	s.logger.Info("snapshot deleted", slog.String("snapshot_id", id))
	return nil
}

func (s *Store) load(projectHash, id string) (*model.Result, *Metadata, error) {
	var compressed, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if compressed, err = getCopy(txn, dataKey(projectHash, id)); err != nil {
			return fmt.Errorf("reading data for %s: %w", id, err)
		}
		if metaJSON, err = getCopy(txn, metaKey(projectHash, id)); err != nil {
			return fmt.Errorf("reading metadata for %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", id, err)
	}
	if actual := hashBytes(compressed); meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("%w: %s: expected %s, got %s", ErrIntegrity, id, meta.ContentHash, actual)
	}

	payload, err := decompress(compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", id, err)
	}
	var result model.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling result for %s: %w", id, err)
	}
	return &result, &meta, nil
}

func (s *Store) readString(key string) (string, error) {
	var out string
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getCopy(txn, key)
		if err != nil {
			return err
		}
		out = string(val)
		return nil
	})
	return out, err
}

// getCopy reads key, mapping a missing key to ErrNotFound.
func getCopy(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// ProjectHash returns sha256(project)[:16], the key prefix of a project.
func ProjectHash(project string) string {
	return hashString(project)[:16]
}

// ResultHash returns the hex sha256 of result's JSON encoding. Equal
// results always hash equally because model.Result carries no timestamps
// and encoding/json sorts map keys.
func ResultHash(result *model.Result) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	return hashBytes(payload), nil
}

func flowCount(r *model.Result) int {
	return len(r.Containment) + len(r.PropFlows) + len(r.StateFlows) + len(r.ContextFlows) + len(r.EventFlows)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing result: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

func dataKey(projectHash, id string) string {
	return keyPrefix + projectHash + ":" + id + keySuffixData
}

func metaKey(projectHash, id string) string {
	return keyPrefix + projectHash + ":" + id + keySuffixMeta
}

func latestKey(projectHash string) string {
	return keyPrefix + projectHash + keySuffixLatest
}

func indexKey(id string) string {
	return keyPrefixIndex + id
}

func hashString(s string) string {
	return hashBytes([]byte(s))
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
