package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Flat формат прототипа и Classic: [4 байта BE число блоков][id блоков],
// весь буфер сжат GZIP. Ни метаданных, ни света. Порядок ячеек родной
// (x старший, затем z, y внутренний).
type Flat struct{}

func (Flat) Format() protocol.ChunkFormat { return protocol.ChunkFlat }

// Encode кодирует чанк
func (Flat) Encode(c *chunk.Chunk, m translate.Mapper) ([]byte, error) {
	blocks := toNative(c.Arrays().Blocks, m)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(blocks)))
	if _, err := gz.Write(prefix[:]); err != nil {
		return nil, fmt.Errorf("flat: запись префикса: %w", err)
	}
	if _, err := gz.Write(blocks); err != nil {
		return nil, fmt.Errorf("flat: запись блоков: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("flat: завершение gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode декодирует чанк. Свет не вычисляется: в формате его нет.
func (Flat) Decode(coords vec.Vec2, data []byte, m translate.Mapper) (*chunk.Chunk, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed("flat: gzip заголовок: %v", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, malformed("flat: распаковка: %v", err)
	}
	if len(raw) < 4 {
		return nil, malformed("flat: нет префикса длины")
	}
	n := binary.BigEndian.Uint32(raw[:4])
	if int(n) != chunk.Volume || len(raw)-4 != int(n) {
		return nil, malformed("flat: заявлено %d блоков, получено %d", n, len(raw)-4)
	}
	return chunk.FromArrays(coords, chunk.Arrays{Blocks: toCanonical(raw[4:], m)})
}
