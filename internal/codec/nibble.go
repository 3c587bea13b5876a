package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Размер несжатого nibble-пакета: блоки, метаданные, свет блоков, небесный свет
const nibblePayloadSize = chunk.Volume + 3*chunk.Volume/2

// Nibble формат Alpha/Beta: blocks || metadata || blockLight || skyLight,
// каждый массив в родном порядке чанка, всё сжато одним потоком zlib.
type Nibble struct{}

func (Nibble) Format() protocol.ChunkFormat { return protocol.ChunkNibble }

// Raw возвращает несжатый пакет (используется и при записи на диск)
func (Nibble) Raw(c *chunk.Chunk, m translate.Mapper) []byte {
	a := c.Arrays()
	out := make([]byte, 0, nibblePayloadSize)
	out = append(out, toNative(a.Blocks, m)...)
	out = append(out, a.Metadata...)
	out = append(out, a.BlockLight...)
	out = append(out, a.SkyLight...)
	return out
}

// Encode кодирует чанк
func (n Nibble) Encode(c *chunk.Chunk, m translate.Mapper) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(n.Raw(c, m)); err != nil {
		return nil, fmt.Errorf("nibble: сжатие: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("nibble: завершение zlib: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode точная обратная операция. Сохранённый свет принимается как есть,
// BFS освещения не запускается.
func (Nibble) Decode(coords vec.Vec2, data []byte, m translate.Mapper) (*chunk.Chunk, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed("nibble: zlib заголовок: %v", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, malformed("nibble: распаковка: %v", err)
	}
	if len(raw) != nibblePayloadSize {
		return nil, malformed("nibble: размер %d, ожидалось %d", len(raw), nibblePayloadSize)
	}

	const half = chunk.Volume / 2
	blocks := raw[:chunk.Volume]
	rest := raw[chunk.Volume:]
	return chunk.FromArrays(coords, chunk.Arrays{
		Blocks:     toCanonical(blocks, m),
		Metadata:   chunk.NibbleArray(rest[:half]),
		BlockLight: chunk.NibbleArray(rest[half : 2*half]),
		SkyLight:   chunk.NibbleArray(rest[2*half:]),
	})
}
