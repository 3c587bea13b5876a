package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/gzip"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// BadgerStore чанки в BadgerDB под ключами chunk:<x>:<z>, значение -
// та же GZIP NBT запись, что и в файлах Alpha
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает базу в <root>/chunks.db
func NewBadgerStore(root string) (*BadgerStore, error) {
	dbPath := filepath.Join(root, "chunks.db")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerStore{db: db, dbPath: dbPath, isReady: true}, nil
}

// newInMemoryBadger база без диска (тесты)
func newInMemoryBadger() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, isReady: true}, nil
}

func chunkKey(coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d", coords.X, coords.Z))
}

func (s *BadgerStore) LoadChunk(coords vec.Vec2) (*chunk.Chunk, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coords))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение чанка %d,%d: %w", coords.X, coords.Z, err)
	}

	source := string(chunkKey(coords))
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Coords: coords, Source: source, Err: err}
	}
	defer zr.Close()
	return readRecord(zr, coords, source)
}

func (s *BadgerStore) SaveChunk(c *chunk.Chunk) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := writeRecord(zw, c); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("сжатие чанка: %w", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(c.Coords), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("запись чанка %d,%d: %w", c.Coords.X, c.Coords.Z, err)
	}
	c.MarkSaved()
	return nil
}

// Close закрывает базу
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
