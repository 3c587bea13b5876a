// Package codec кодирует канонический чанк в форматы передачи каждого семейства
// протоколов: плоский массив Classic, nibble-массивы Alpha/Beta и
// bit-packed сабчанки Bedrock.
package codec

import (
	"errors"
	"fmt"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// ErrMalformed возвращается декодерами на усечённых или повреждённых данных
var ErrMalformed = errors.New("повреждённые данные чанка")

// Codec кодек одного формата. Encode переводит id блоков через mapper клиента,
// Decode выполняет обратный перевод. nil mapper означает тождественный перевод.
// Кодеки не хранят состояния и безопасны для конкурентного использования.
type Codec interface {
	Format() protocol.ChunkFormat
	Encode(c *chunk.Chunk, m translate.Mapper) ([]byte, error)
	Decode(coords vec.Vec2, data []byte, m translate.Mapper) (*chunk.Chunk, error)
}

// ForVersion выбирает кодек по версии клиента. Для версий без формата
// чанков возвращает nil, false.
func ForVersion(v protocol.Version) (Codec, bool) {
	switch v.Chunks {
	case protocol.ChunkFlat:
		return Flat{}, true
	case protocol.ChunkNibble:
		return Nibble{}, true
	case protocol.ChunkPaletted:
		return NewPaletted(v.MinY, v.MaxY), true
	default:
		return nil, false
	}
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// toNative переводит массив канонических id в пространство клиента.
// Однобайтовые форматы сохраняют младший байт.
func toNative(blocks []byte, m translate.Mapper) []byte {
	out := make([]byte, len(blocks))
	if m == nil {
		copy(out, blocks)
		return out
	}
	var cache [translate.Domain]byte
	var cached [translate.Domain]bool
	for i, id := range blocks {
		if !cached[id] {
			cache[id] = byte(m.Map(int(id)))
			cached[id] = true
		}
		out[i] = cache[id]
	}
	return out
}

func toCanonical(native []byte, m translate.Mapper) []byte {
	if m == nil {
		return native
	}
	for i, id := range native {
		native[i] = m.Legacy(uint32(id))
	}
	return native
}
