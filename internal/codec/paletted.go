package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

const (
	// SubChunkVersion версия формата сабчанка
	SubChunkVersion = 8
	// SlabHeight высота одного сабчанка
	SlabHeight = 16
	// SlabVolume число ячеек в сабчанке
	SlabVolume = 16 * 16 * SlabHeight
	// BiomeCells число ячеек биомов в сабчанке (4x4x4)
	BiomeCells = 4 * 4 * 4
	// BiomeCopyPrevious маркер "биомы как в предыдущем сабчанке"
	BiomeCopyPrevious = 0xFF
	// DefaultBiome равнины
	DefaultBiome = 1
)

// supportedWidths допустимые ширины индекса в битах
var supportedWidths = [...]int{1, 2, 3, 4, 5, 6, 8, 16}

func widthSupported(bits int) bool {
	for _, w := range supportedWidths {
		if w == bits {
			return true
		}
	}
	return false
}

// widthFor минимальная допустимая ширина для палитры размера n (n >= 2)
func widthFor(n int) int {
	need := 1
	for (1 << need) < n {
		need++
	}
	for _, w := range supportedWidths {
		if w >= need {
			return w
		}
	}
	return 16
}

// Paletted формат Bedrock: вертикаль делится на сабчанки по 16 блоков,
// у каждого своя палитра runtime id и bit-packed индексы.
type Paletted struct {
	MinY, MaxY int
	// Biome идентификатор биома для всего чанка
	Biome uint32
}

// NewPaletted создаёт кодек для измерения с границами [minY, maxY]
func NewPaletted(minY, maxY int) Paletted {
	return Paletted{MinY: minY, MaxY: maxY, Biome: DefaultBiome}
}

func (Paletted) Format() protocol.ChunkFormat { return protocol.ChunkPaletted }

// SlabCount число сабчанков измерения
func (p Paletted) SlabCount() int {
	return (p.MaxY - p.MinY + 1) / SlabHeight
}

// canonicalSlab возвращает номер 16-блочного слоя канонического чанка для
// сабчанка s или -1, если сабчанк вне канонического диапазона
func (p Paletted) canonicalSlab(s int) int {
	y0 := p.MinY + s*SlabHeight
	if y0 < 0 || y0 >= chunk.Height {
		return -1
	}
	return y0 / SlabHeight
}

// PalettedChunk декодированное содержимое пакета
type PalettedChunk struct {
	// Slabs runtime id по ячейкам сабчанка, индекс (x<<8)|(z<<4)|y
	Slabs         [][]uint32
	Biomes        [][]uint32
	BlockEntities []map[string]any
}

// Encode кодирует чанк
func (p Paletted) Encode(c *chunk.Chunk, m translate.Mapper) ([]byte, error) {
	snap := c.Snapshot()
	a := snap.Arrays()

	var air uint32
	if m != nil {
		air = m.Map(translate.CanonicalAir)
	}
	var cache [translate.Domain]uint32
	for id := range cache {
		cache[id] = uint32(id)
		if m != nil {
			cache[id] = m.Map(id)
		}
	}

	var buf bytes.Buffer
	cells := make([]uint32, SlabVolume)
	for s := 0; s < p.SlabCount(); s++ {
		cs := p.canonicalSlab(s)
		if cs < 0 {
			writeSingle(&buf, air)
			continue
		}
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				for y := 0; y < SlabHeight; y++ {
					id := a.Blocks[chunk.Index(x, cs*SlabHeight+y, z)]
					cells[x<<8|z<<4|y] = cache[id]
				}
			}
		}
		writeStorage(&buf, cells, true)
	}

	// Биомы: весь чанк одного биома, первый сабчанк явно, остальные копией
	biomes := make([]uint32, BiomeCells)
	for i := range biomes {
		biomes[i] = p.Biome
	}
	for s := 0; s < p.SlabCount(); s++ {
		if s == 0 {
			writeStorage(&buf, biomes, false)
			continue
		}
		buf.WriteByte(BiomeCopyPrevious)
	}

	// Граничные блоки не используются
	buf.WriteByte(0)

	for _, te := range snap.TileEntities() {
		data, err := nbt.MarshalEncoding(map[string]any(te), nbt.NetworkLittleEndian)
		if err != nil {
			return nil, fmt.Errorf("paletted: блок-сущность %q: %w", te.ID(), err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func writeSingle(buf *bytes.Buffer, value uint32) {
	buf.WriteByte(SubChunkVersion)
	buf.WriteByte(1)
	buf.WriteByte(0<<1 | 1)
	writeVarint(buf, int32(value))
}

// writeStorage пишет одно хранилище: для блоков с заголовком сабчанка.
// Палитра строится в порядке первого появления.
func writeStorage(buf *bytes.Buffer, cells []uint32, withSubChunkHeader bool) {
	palette := make([]uint32, 0, 16)
	lookup := make(map[uint32]uint32, 16)
	indices := make([]uint32, len(cells))
	for i, v := range cells {
		idx, ok := lookup[v]
		if !ok {
			idx = uint32(len(palette))
			lookup[v] = idx
			palette = append(palette, v)
		}
		indices[i] = idx
	}

	if withSubChunkHeader {
		buf.WriteByte(SubChunkVersion)
		buf.WriteByte(1)
	}
	if len(palette) == 1 {
		buf.WriteByte(0<<1 | 1)
		writeVarint(buf, int32(palette[0]))
		return
	}

	bits := widthFor(len(palette))
	buf.WriteByte(byte(bits<<1 | 1))
	for _, w := range packIndices(indices, bits) {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], w)
		buf.Write(word[:])
	}
	writeVarint(buf, int32(len(palette)))
	for _, v := range palette {
		writeVarint(buf, int32(v))
	}
}

// packIndices упаковывает индексы в 32-битные слова, младшие биты первыми.
// Ячейка не пересекает границу слова.
func packIndices(indices []uint32, bits int) []uint32 {
	perWord := 32 / bits
	words := make([]uint32, (len(indices)+perWord-1)/perWord)
	mask := uint32(1)<<bits - 1
	for i, idx := range indices {
		shift := uint(i%perWord) * uint(bits)
		words[i/perWord] |= (idx & mask) << shift
	}
	return words
}

func unpackIndices(words []uint32, bits, n int) []uint32 {
	perWord := 32 / bits
	mask := uint32(1)<<bits - 1
	out := make([]uint32, n)
	for i := range out {
		shift := uint(i%perWord) * uint(bits)
		out[i] = (words[i/perWord] >> shift) & mask
	}
	return out
}

func writeVarint(buf *bytes.Buffer, v int32) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], int64(v))
	buf.Write(tmp[:n])
}

// Decode декодирует пакет и переводит сабчанки канонического диапазона в чанк
func (p Paletted) Decode(coords vec.Vec2, data []byte, m translate.Mapper) (*chunk.Chunk, error) {
	pc, err := p.DecodeRaw(data)
	if err != nil {
		return nil, err
	}

	blocks := make([]byte, chunk.Volume)
	for s, cells := range pc.Slabs {
		cs := p.canonicalSlab(s)
		if cs < 0 {
			continue
		}
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				for y := 0; y < SlabHeight; y++ {
					rid := cells[x<<8|z<<4|y]
					id := byte(rid)
					if m != nil {
						id = m.Legacy(rid)
					}
					blocks[chunk.Index(x, cs*SlabHeight+y, z)] = id
				}
			}
		}
	}
	c, err := chunk.FromArrays(coords, chunk.Arrays{Blocks: blocks})
	if err != nil {
		return nil, err
	}
	if len(pc.BlockEntities) > 0 {
		records := make([]chunk.Record, len(pc.BlockEntities))
		for i, be := range pc.BlockEntities {
			records[i] = chunk.Record(be)
		}
		c.SetTileEntities(records)
	}
	c.MarkSaved()
	return c, nil
}

// DecodeRaw разбирает пакет, не зная, как кодировщик выбирал ширину и палитру
func (p Paletted) DecodeRaw(data []byte) (*PalettedChunk, error) {
	r := bytes.NewReader(data)
	pc := &PalettedChunk{}

	for s := 0; s < p.SlabCount(); s++ {
		version, err := r.ReadByte()
		if err != nil {
			return nil, malformed("paletted: сабчанк %d: нет версии", s)
		}
		if version != SubChunkVersion {
			return nil, malformed("paletted: сабчанк %d: версия %d", s, version)
		}
		layers, err := r.ReadByte()
		if err != nil || layers < 1 {
			return nil, malformed("paletted: сабчанк %d: нет слоёв", s)
		}
		var cells []uint32
		for l := 0; l < int(layers); l++ {
			header, err := r.ReadByte()
			if err != nil {
				return nil, malformed("paletted: сабчанк %d: нет заголовка хранилища", s)
			}
			layer, err := readStorage(r, header, SlabVolume)
			if err != nil {
				return nil, fmt.Errorf("paletted: сабчанк %d слой %d: %w", s, l, err)
			}
			// Дополнительные слои (вода в блоке) каноническая модель не хранит
			if l == 0 {
				cells = layer
			}
		}
		pc.Slabs = append(pc.Slabs, cells)
	}

	for s := 0; s < p.SlabCount(); s++ {
		header, err := r.ReadByte()
		if err != nil {
			return nil, malformed("paletted: биомы %d: нет заголовка", s)
		}
		if header == BiomeCopyPrevious {
			if s == 0 {
				return nil, malformed("paletted: первый сабчанк биомов не может ссылаться на предыдущий")
			}
			pc.Biomes = append(pc.Biomes, pc.Biomes[s-1])
			continue
		}
		cells, err := readStorage(r, header, BiomeCells)
		if err != nil {
			return nil, fmt.Errorf("paletted: биомы %d: %w", s, err)
		}
		pc.Biomes = append(pc.Biomes, cells)
	}

	border, err := r.ReadByte()
	if err != nil {
		return nil, malformed("paletted: нет счётчика граничных блоков")
	}
	if r.Len() < int(border) {
		return nil, malformed("paletted: усечённые граничные блоки")
	}
	if _, err := r.Seek(int64(border), io.SeekCurrent); err != nil {
		return nil, malformed("paletted: граничные блоки: %v", err)
	}

	if r.Len() > 0 {
		dec := nbt.NewDecoderWithEncoding(r, nbt.NetworkLittleEndian)
		for r.Len() > 0 {
			var be map[string]any
			if err := dec.Decode(&be); err != nil {
				return nil, malformed("paletted: блок-сущность %d: %v", len(pc.BlockEntities), err)
			}
			pc.BlockEntities = append(pc.BlockEntities, be)
		}
	}
	return pc, nil
}

func readStorage(r *bytes.Reader, header byte, n int) ([]uint32, error) {
	if header&1 == 0 {
		return nil, malformed("хранилище с постоянными id не поддерживается")
	}
	bits := int(header >> 1)
	if bits == 0 {
		v, err := binary.ReadVarint(r)
		if err != nil {
			return nil, malformed("нет значения для одного элемента: %v", err)
		}
		out := make([]uint32, n)
		for i := range out {
			out[i] = uint32(v)
		}
		return out, nil
	}
	if !widthSupported(bits) {
		return nil, malformed("недопустимая ширина %d бит", bits)
	}

	perWord := 32 / bits
	words := make([]uint32, (n+perWord-1)/perWord)
	for i := range words {
		var word [4]byte
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return nil, malformed("усечённые слова индексов")
		}
		words[i] = binary.LittleEndian.Uint32(word[:])
	}

	size, err := binary.ReadVarint(r)
	if err != nil || size <= 0 || size > int64(n) {
		return nil, malformed("неверный размер палитры %d", size)
	}
	palette := make([]uint32, size)
	for i := range palette {
		v, err := binary.ReadVarint(r)
		if err != nil {
			return nil, malformed("усечённая палитра")
		}
		palette[i] = uint32(v)
	}

	indices := unpackIndices(words, bits, n)
	out := make([]uint32, n)
	for i, idx := range indices {
		if int(idx) >= len(palette) {
			return nil, malformed("индекс %d вне палитры размера %d", idx, len(palette))
		}
		out[i] = palette[idx]
	}
	return out, nil
}
