package storage

import (
	"errors"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Generator создаёт чанк, которого нет ни в одном хранилище
type Generator interface {
	Generate(coords vec.Vec2) *chunk.Chunk
}

// Origin откуда взят чанк
type Origin uint8

const (
	OriginStore Origin = iota
	OriginGenerated
)

func (o Origin) String() string {
	if o == OriginGenerated {
		return "generated"
	}
	return "store"
}

// MultiSource опрашивает хранилища по порядку и генерирует чанк, если ни
// одно его не вернуло. Повреждённый чанк логируется и считается отсутствующим.
type MultiSource struct {
	stores []ChunkStore
	gen    Generator
	log    *logging.Logger
}

// NewMultiSource создаёт источник; gen может быть nil
func NewMultiSource(gen Generator, stores ...ChunkStore) *MultiSource {
	return &MultiSource{stores: stores, gen: gen, log: logging.GetStorageLogger()}
}

// Fetch возвращает чанк и его происхождение
func (m *MultiSource) Fetch(coords vec.Vec2) (*chunk.Chunk, Origin, error) {
	for _, s := range m.stores {
		c, err := s.LoadChunk(coords)
		if err == nil {
			return c, OriginStore, nil
		}
		var le *LoadError
		if errors.As(err, &le) {
			m.log.Warn("⚠️ %v, чанк будет создан заново", le)
			continue
		}
		if errors.Is(err, ErrChunkNotFound) {
			continue
		}
		return nil, OriginStore, err
	}

	if m.gen == nil {
		return nil, OriginStore, ErrChunkNotFound
	}
	return m.gen.Generate(coords), OriginGenerated, nil
}

func (m *MultiSource) LoadChunk(coords vec.Vec2) (*chunk.Chunk, error) {
	c, _, err := m.Fetch(coords)
	return c, err
}

// SaveChunk пишет в первое хранилище
func (m *MultiSource) SaveChunk(c *chunk.Chunk) error {
	if len(m.stores) == 0 {
		return nil
	}
	return m.stores[0].SaveChunk(c)
}

// Close закрывает все хранилища
func (m *MultiSource) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
