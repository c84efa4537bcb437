package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/medimatch/storage"
)

// sequenceLease is how many IDs a sequence reserves per disk write.
const sequenceLease = 100

// Backend owns the BadgerDB handle shared by the medication and catalog-info repositories.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogBadger forwards badger's printf-style log calls to slog.
type slogBadger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogBadger)(nil)

func (l *slogBadger) Errorf(format string, args ...any)   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *slogBadger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *slogBadger) Infof(format string, args ...any)    { l.logger.Debug(fmt.Sprintf(format, args...)) }
func (l *slogBadger) Debugf(format string, args ...any)   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// OpenBackend opens the store at filePath, creating the directory if needed.
// With inMemory the path is ignored and nothing touches disk.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	// Vectors are float noise to a compressor.
	opts = opts.WithLogger(&slogBadger{logger: logger}).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open medication store: %w", err)
	}
	logger.Debug("store opened", "path", filePath, "inMemory", inMemory)

	return &Backend{db: db, logger: logger}, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	if b.db.IsClosed() {
		return storageClosed()
	}
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it if fn succeeds.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	if b.db.IsClosed() {
		return storageClosed()
	}
	return b.db.Update(fn)
}

// Sequence returns a persistent monotonic counter stored under name.
func (b *Backend) Sequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), sequenceLease)
}

// DropPrefix deletes every key starting with any of prefixes.
func (b *Backend) DropPrefix(prefixes ...[]byte) error {
	if b.db.IsClosed() {
		return storageClosed()
	}
	return b.db.DropPrefix(prefixes...)
}

// scanPrefix calls fn for every item under prefix in key order.
func scanPrefix(tx *badger.Txn, prefix []byte, withValues bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			return err
		}
	}
	return nil
}

func storageClosed() error {
	return fmt.Errorf("badger: %w", storage.ErrStorageClosed)
}
