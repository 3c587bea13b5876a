package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Тип сжатия в первом байте полезной нагрузки сектора
const (
	compressionGzip = 1
	compressionZlib = 2
)

// RegionStore 32x32 чанка в файле <root>/region/r.<rx>.<rz>.mcr. Открытые
// регионы кэшируются до Close.
type RegionStore struct {
	dir string
	log *logging.Logger

	mu      sync.Mutex
	regions map[vec.Vec2]*region.Region
}

// NewRegionStore создаёт хранилище в каталоге мира
func NewRegionStore(root string) (*RegionStore, error) {
	dir := filepath.Join(root, "region")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("каталог регионов %s: %w", dir, err)
	}
	return &RegionStore{
		dir:     dir,
		log:     logging.GetStorageLogger(),
		regions: make(map[vec.Vec2]*region.Region),
	}, nil
}

// RegionPath путь к файлу региона, содержащего чанк
func (s *RegionStore) RegionPath(coords vec.Vec2) string {
	rc := coords.ToRegionCoords()
	return filepath.Join(s.dir, fmt.Sprintf("r.%d.%d.mcr", rc.X, rc.Z))
}

// region возвращает открытый регион. Если файла нет и create == false,
// возвращает nil без ошибки.
func (s *RegionStore) region(coords vec.Vec2, create bool) (*region.Region, error) {
	rc := coords.ToRegionCoords()
	if r, ok := s.regions[rc]; ok {
		return r, nil
	}

	path := s.RegionPath(coords)
	r, err := region.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !create {
			return nil, nil
		}
		r, err = region.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("регион %s: %w", path, err)
	}
	s.regions[rc] = r
	return r, nil
}

func (s *RegionStore) LoadChunk(coords vec.Vec2) (*chunk.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.region(coords, false)
	if err != nil {
		return nil, err
	}
	lx, lz := coords.X&31, coords.Z&31
	if r == nil || !r.ExistSector(lx, lz) {
		return nil, ErrChunkNotFound
	}

	source := s.RegionPath(coords)
	data, err := r.ReadSector(lx, lz)
	if err != nil {
		return nil, &LoadError{Coords: coords, Source: source, Err: err}
	}
	if len(data) < 2 {
		return nil, &LoadError{Coords: coords, Source: source, Err: io.ErrUnexpectedEOF}
	}

	var rd io.ReadCloser
	switch data[0] {
	case compressionZlib:
		rd, err = zlib.NewReader(bytes.NewReader(data[1:]))
	case compressionGzip:
		rd, err = gzip.NewReader(bytes.NewReader(data[1:]))
	default:
		err = fmt.Errorf("неизвестный тип сжатия %d", data[0])
	}
	if err != nil {
		return nil, &LoadError{Coords: coords, Source: source, Err: err}
	}
	defer rd.Close()

	return readRecord(rd, coords, source)
}

func (s *RegionStore) SaveChunk(c *chunk.Chunk) error {
	var buf bytes.Buffer
	buf.WriteByte(compressionZlib)
	zw := zlib.NewWriter(&buf)
	if err := writeRecord(zw, c); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("сжатие чанка: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.region(c.Coords, true)
	if err != nil {
		return err
	}
	if err := r.WriteSector(c.Coords.X&31, c.Coords.Z&31, buf.Bytes()); err != nil {
		return fmt.Errorf("запись сектора %d,%d: %w", c.Coords.X, c.Coords.Z, err)
	}
	c.MarkSaved()
	return nil
}

// Close закрывает все открытые регионы
func (s *RegionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for rc, r := range s.regions {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("регион %d,%d: %w", rc.X, rc.Z, err))
		}
		delete(s.regions, rc)
	}
	return errors.Join(errs...)
}
