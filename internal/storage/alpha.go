package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// AlphaStore файл на чанк: <root>/<b36(x&63)>/<b36(z&63)>/c.<b36 x>.<b36 z>.dat,
// содержимое - GZIP NBT с компаундом Level.
type AlphaStore struct {
	root string
	log  *logging.Logger
}

// NewAlphaStore создаёт хранилище в каталоге мира
func NewAlphaStore(root string) (*AlphaStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("каталог мира %s: %w", root, err)
	}
	return &AlphaStore{root: root, log: logging.GetStorageLogger()}, nil
}

func base36(v int) string {
	return strconv.FormatInt(int64(v), 36)
}

// ChunkPath путь к файлу чанка
func (s *AlphaStore) ChunkPath(coords vec.Vec2) string {
	return filepath.Join(
		s.root,
		base36(coords.X&63),
		base36(coords.Z&63),
		"c."+base36(coords.X)+"."+base36(coords.Z)+".dat")
}

func (s *AlphaStore) LoadChunk(coords vec.Vec2) (*chunk.Chunk, error) {
	path := s.ChunkPath(coords)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("открытие %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, &LoadError{Coords: coords, Source: path, Err: err}
	}
	defer zr.Close()

	return readRecord(zr, coords, path)
}

// SaveChunk пишет во временный файл и переименовывает его поверх старого
func (s *AlphaStore) SaveChunk(c *chunk.Chunk) error {
	path := s.ChunkPath(c.Coords)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("каталог чанка: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chunk-*")
	if err != nil {
		return fmt.Errorf("временный файл чанка: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := writeRecord(zw, c); err != nil {
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("сжатие чанка: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("запись %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("замена %s: %w", path, err)
	}

	c.MarkSaved()
	s.log.Debug("💾 Чанк %d,%d сохранён в %s", c.Coords.X, c.Coords.Z, path)
	return nil
}

func (s *AlphaStore) Close() error { return nil }
