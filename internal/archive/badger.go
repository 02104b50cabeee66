// Package archive pins evidence content in a content-addressed BadgerDB
// keyspace.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	blobPrefix    = "blob:"
	locatorScheme = "badger://"
)

// Config configures the archive. Path is ignored when InMemory is set, and a
// zero GCInterval disables value log garbage collection.
type Config struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type zapBadgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapBadgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *zapBadgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *zapBadgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *zapBadgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// BadgerArchive implements domain.Archive.
type BadgerArchive struct {
	db     *badger.DB
	cfg    Config
	logger *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ domain.Archive = (*BadgerArchive)(nil)

func Open(cfg Config, logger *zap.Logger) (*BadgerArchive, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("archive path is required for a persistent archive")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&zapBadgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	return &BadgerArchive{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Hash is the content address used as the archive key.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (a *BadgerArchive) Store(ctx context.Context, content []byte) (domain.ArchiveRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArchiveRef{}, err
	}
	hash := Hash(content)
	key := []byte(blobPrefix + hash)

	err := a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, content)
	})
	if err != nil {
		return domain.ArchiveRef{}, fmt.Errorf("archive content: %w", err)
	}

	a.logger.Debug("content archived", zap.String("hash", hash), zap.Int("bytes", len(content)))
	return domain.ArchiveRef{Hash: hash, Locator: locatorScheme + hash}, nil
}

func (a *BadgerArchive) Retrieve(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobPrefix + hash))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve archived content: %w", err)
	}
	return out, nil
}

// Verify reports whether content hashes to hash and matches the stored copy.
// When content is nil only the stored copy's integrity is checked.
func (a *BadgerArchive) Verify(ctx context.Context, hash string, content []byte) (bool, error) {
	stored, err := a.Retrieve(ctx, hash)
	if err != nil {
		return false, err
	}
	if Hash(stored) != hash {
		a.logger.Warn("archived content failed integrity check", zap.String("hash", hash))
		return false, nil
	}
	if content == nil {
		return true, nil
	}
	return Hash(content) == hash && bytes.Equal(stored, content), nil
}

// Start runs value log garbage collection on the configured interval.
func (a *BadgerArchive) Start() {
	if a.cfg.InMemory || a.cfg.GCInterval <= 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.GCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for a.db.RunValueLogGC(a.cfg.GCDiscardRatio) == nil {
				}
			case <-a.stopCh:
				return
			}
		}
	}()
}

func (a *BadgerArchive) Close() error {
	close(a.stopCh)
	a.wg.Wait()
	return a.db.Close()
}
