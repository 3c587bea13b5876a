// Package storage сохраняет и загружает канонические чанки: файлы Alpha,
// регионы McRegion и KV-хранилище Badger.
package storage

import (
	"errors"
	"fmt"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// ErrChunkNotFound чанк отсутствует в хранилище
var ErrChunkNotFound = errors.New("чанк не найден")

// LoadError чанк есть, но прочитать его нельзя: повреждённые или
// усечённые данные, ошибка распаковки. Вызывающий считает чанк отсутствующим.
type LoadError struct {
	Coords vec.Vec2
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("чанк %d,%d (%s) не читается: %v", e.Coords.X, e.Coords.Z, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsMissing сообщает, что чанк следует считать отсутствующим
func IsMissing(err error) bool {
	var le *LoadError
	return errors.Is(err, ErrChunkNotFound) || errors.As(err, &le)
}

// ChunkStore хранилище чанков
type ChunkStore interface {
	// LoadChunk возвращает ErrChunkNotFound или *LoadError, если чанк
	// нельзя загрузить, прочие ошибки - сбои ввода-вывода
	LoadChunk(coords vec.Vec2) (*chunk.Chunk, error)
	SaveChunk(c *chunk.Chunk) error
	Close() error
}

// Backend имя реализации хранилища из конфигурации
type Backend string

const (
	BackendAlpha  Backend = "alpha"
	BackendRegion Backend = "region"
	BackendBadger Backend = "badger"
)

// Open открывает хранилище выбранного типа в каталоге мира
func Open(backend Backend, root string) (ChunkStore, error) {
	switch backend {
	case BackendAlpha, "":
		return NewAlphaStore(root)
	case BackendRegion:
		return NewRegionStore(root)
	case BackendBadger:
		return NewBadgerStore(root)
	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", backend)
	}
}
