// Package badger stores unit sectors as fixed-size chunks in a BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Config holds configuration for the badger backend.
type Config struct {
	// Path is the database directory. Empty runs the database in memory.
	Path string

	SectorSize  uint32
	SectorCount uint32
	ChunkSize   int
	ReadOnly    bool
}

// chunkPrefix namespaces chunk keys so the database can hold other records.
var chunkPrefix = []byte("c/")

type chunkStore struct {
	db *badgerdb.DB
}

// New opens the database and returns the backend.
func New(cfg Config, m metrics.StorageMetrics) (*backend.Chunked, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	if cfg.ReadOnly && cfg.Path != "" {
		opts = opts.WithReadOnly(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger backend: open %q: %w", cfg.Path, err)
	}

	if cfg.SectorSize == 0 {
		cfg.SectorSize = backend.DefaultSectorSize
	}
	b, err := backend.NewChunked(&chunkStore{db: db}, backend.ChunkedConfig{
		Name:      "badger",
		Geometry:  backend.Geometry{SectorSize: cfg.SectorSize, SectorCount: cfg.SectorCount},
		ChunkSize: cfg.ChunkSize,
		ReadOnly:  cfg.ReadOnly,
		Metrics:   m,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Badger backend opened", logger.KeyPath, cfg.Path, logger.KeySectorCount, cfg.SectorCount)
	return b, nil
}

func chunkKey(idx uint64) []byte {
	key := make([]byte, len(chunkPrefix)+8)
	copy(key, chunkPrefix)
	binary.BigEndian.PutUint64(key[len(chunkPrefix):], idx)
	return key
}

func (s *chunkStore) ReadChunk(ctx context.Context, idx uint64, off int, p []byte) error {
	_, span := telemetry.StartStorageSpan(ctx, "badger", "get", telemetry.StorageKey(fmt.Sprint(idx)))
	defer span.End()

	return s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(chunkKey(idx))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			clear(p)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n := 0
			if off < len(val) {
				n = copy(p, val[off:])
			}
			clear(p[n:])
			return nil
		})
	})
}

func (s *chunkStore) WriteChunk(ctx context.Context, idx uint64, data []byte) error {
	_, span := telemetry.StartStorageSpan(ctx, "badger", "set", telemetry.StorageKey(fmt.Sprint(idx)))
	defer span.End()

	// Badger keeps a reference to the value until the transaction commits;
	// the caller reuses data, so store a copy.
	val := append([]byte(nil), data...)
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(chunkKey(idx), val)
	})
}

func (s *chunkStore) HealthCheck(context.Context) error {
	if s.db.IsClosed() {
		return backend.ErrClosed
	}
	return s.db.View(func(*badgerdb.Txn) error { return nil })
}

func (s *chunkStore) Close() error {
	return s.db.Close()
}

var _ backend.ChunkStore = (*chunkStore)(nil)
