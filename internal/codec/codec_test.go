package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

func sampleChunk(seed int64) *chunk.Chunk {
	c := chunk.New(vec.Vec2{X: 3, Z: -7})
	rng := rand.New(rand.NewSource(seed))
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			top := 50 + rng.Intn(30)
			for y := 0; y < top; y++ {
				c.SetBlock(x, y, z, block.StoneBlockID)
			}
			c.SetBlock(x, top, z, block.GrassBlockID)
		}
	}
	for n := 0; n < 500; n++ {
		x, y, z := rng.Intn(16), rng.Intn(chunk.Height), rng.Intn(16)
		c.SetBlockAndMetadata(x, y, z, byte(rng.Intn(97)), byte(rng.Intn(16)))
	}
	c.GenerateLight(nil)
	return c
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	return raw
}

func TestFlat_RoundTrip(t *testing.T) {
	c := sampleChunk(1)
	data, err := Flat{}.Encode(c, nil)
	require.NoError(t, err)

	out, err := Flat{}.Decode(c.Coords, data, nil)
	require.NoError(t, err)
	assert.Equal(t, c.Arrays().Blocks, out.Arrays().Blocks)
	assert.Equal(t, c.Arrays().HeightMap, out.Arrays().HeightMap)
}

func TestFlat_Prefix(t *testing.T) {
	data, err := Flat{}.Encode(chunk.New(vec.Vec2{}), nil)
	require.NoError(t, err)

	raw := gunzip(t, data)
	assert.Equal(t, uint32(chunk.Volume), binary.BigEndian.Uint32(raw[:4]))
	assert.Len(t, raw, 4+chunk.Volume)
}

func TestFlat_TranslatesToPrototype(t *testing.T) {
	ctx := translate.NewContext(translate.Options{Logger: logging.NewWriterLogger("t", io.Discard, logging.ERROR)})
	m := ctx.ForVersion(protocol.Prototype)

	c := chunk.New(vec.Vec2{})
	c.SetBlock(0, 0, 0, block.CobblestoneBlockID)
	data, err := Flat{}.Encode(c, m)
	require.NoError(t, err)

	raw := gunzip(t, data)
	assert.Equal(t, byte(1), raw[4+chunk.Index(0, 0, 0)])
}

func TestNibble_RoundTripIncludingLight(t *testing.T) {
	c := sampleChunk(2)
	data, err := Nibble{}.Encode(c, nil)
	require.NoError(t, err)

	out, err := Nibble{}.Decode(c.Coords, data, nil)
	require.NoError(t, err)
	assert.Equal(t, c.Arrays(), out.Arrays())
}

func TestNibble_DecodeDoesNotRelight(t *testing.T) {
	c := chunk.New(vec.Vec2{})
	c.SetBlock(0, 10, 0, block.StoneBlockID)
	// Свет не посчитан: после декодирования он должен остаться нулевым
	data, err := Nibble{}.Encode(c, nil)
	require.NoError(t, err)

	out, err := Nibble{}.Decode(c.Coords, data, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0), out.SkyLight(0, 100, 0))
}

func TestNibble_Truncated(t *testing.T) {
	data, err := Nibble{}.Encode(sampleChunk(3), nil)
	require.NoError(t, err)

	_, err = Nibble{}.Decode(vec.Vec2{}, data[:len(data)/2], nil)
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Flat{}.Decode(vec.Vec2{}, []byte{1, 2, 3}, nil)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestPaletted_RoundTrip(t *testing.T) {
	for _, v := range []protocol.Version{protocol.Bedrock1_16_100, protocol.Bedrock1_18_0} {
		p := NewPaletted(v.MinY, v.MaxY)
		c := sampleChunk(4)

		data, err := p.Encode(c, nil)
		require.NoError(t, err)

		out, err := p.Decode(c.Coords, data, nil)
		require.NoError(t, err, v.Name)
		assert.Equal(t, c.Arrays().Blocks, out.Arrays().Blocks, v.Name)

		raw, err := p.DecodeRaw(data)
		require.NoError(t, err)
		assert.Len(t, raw.Slabs, p.SlabCount())
		assert.Len(t, raw.Biomes, p.SlabCount())
		for _, b := range raw.Biomes {
			assert.Equal(t, uint32(DefaultBiome), b[0])
		}
	}
}

func TestPaletted_SingleValueShorthand(t *testing.T) {
	p := NewPaletted(0, 255)
	c := chunk.New(vec.Vec2{})
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := 0; y < 16; y++ {
				c.SetBlock(x, y, z, block.StoneBlockID)
			}
		}
	}

	data, err := p.Encode(c, nil)
	require.NoError(t, err)
	// Первый сабчанк: версия, слои, заголовок ширины 0, одно значение
	assert.Equal(t, []byte{SubChunkVersion, 1, 0<<1 | 1, 2}, data[:4], "varint(1) в zigzag кодируется как 2")

	raw, err := p.DecodeRaw(data)
	require.NoError(t, err)
	require.Len(t, raw.Slabs[0], SlabVolume)
	for _, v := range raw.Slabs[0] {
		require.Equal(t, uint32(block.StoneBlockID), v)
	}
	for _, v := range raw.Slabs[15] {
		require.Equal(t, uint32(0), v, "Сабчанк выше канонического диапазона - воздух")
	}
}

func TestPaletted_TallDimensionPadsBelow(t *testing.T) {
	p := NewPaletted(-64, 319)
	assert.Equal(t, 24, p.SlabCount())
	assert.Equal(t, -1, p.canonicalSlab(3))
	assert.Equal(t, 0, p.canonicalSlab(4))
	assert.Equal(t, 7, p.canonicalSlab(11))
	assert.Equal(t, -1, p.canonicalSlab(12))
}

func TestWidthFor(t *testing.T) {
	cases := map[int]int{2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 17: 5, 33: 6, 65: 8, 256: 8, 257: 16, 4096: 16}
	for n, want := range cases {
		assert.Equal(t, want, widthFor(n), "палитра %d", n)
	}
}

// handSlab собирает сабчанк с заведомо избыточной шириной и палитрой
func handSlab(bits int, palette []int32, index func(i int) uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(SubChunkVersion)
	buf.WriteByte(1)
	buf.WriteByte(byte(bits<<1 | 1))
	indices := make([]uint32, SlabVolume)
	for i := range indices {
		indices[i] = index(i)
	}
	for _, w := range packIndices(indices, bits) {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], w)
		buf.Write(word[:])
	}
	writeVarint(&buf, int32(len(palette)))
	for _, v := range palette {
		writeVarint(&buf, v)
	}
	return buf.Bytes()
}

func TestPaletted_DecoderAcceptsAnyLegalWidth(t *testing.T) {
	p := NewPaletted(0, 15)
	for _, bits := range []int{1, 2, 3, 4, 5, 6, 8, 16} {
		// Палитра с неиспользуемыми записями и ширина больше минимальной
		palette := []int32{0, 7}
		var buf bytes.Buffer
		buf.Write(handSlab(bits, palette, func(i int) uint32 { return uint32(i % 2) }))
		buf.WriteByte(0<<1 | 1)
		writeVarint(&buf, DefaultBiome)
		buf.WriteByte(0)

		raw, err := p.DecodeRaw(buf.Bytes())
		require.NoError(t, err, "ширина %d", bits)
		assert.Equal(t, uint32(0), raw.Slabs[0][0])
		assert.Equal(t, uint32(7), raw.Slabs[0][1])
		assert.Equal(t, uint32(7), raw.Slabs[0][SlabVolume-1])
	}
}

func TestPaletted_RejectsBadWidthAndIndex(t *testing.T) {
	p := NewPaletted(0, 15)

	bad := []byte{SubChunkVersion, 1, 7<<1 | 1}
	_, err := p.DecodeRaw(bad)
	assert.True(t, errors.Is(err, ErrMalformed))

	slab := handSlab(2, []int32{0, 1}, func(i int) uint32 { return 3 })
	_, err = p.DecodeRaw(slab)
	assert.True(t, errors.Is(err, ErrMalformed), "индекс вне палитры")
}

func TestPaletted_BlockEntitiesTrailer(t *testing.T) {
	p := NewPaletted(0, 255)
	c := chunk.New(vec.Vec2{})
	c.SetBlock(1, 2, 3, 54)
	c.SetTileEntities([]chunk.Record{{"id": "Chest", "x": int32(1), "y": int32(2), "z": int32(3)}})

	data, err := p.Encode(c, nil)
	require.NoError(t, err)

	out, err := p.Decode(c.Coords, data, nil)
	require.NoError(t, err)
	te := out.TileEntities()
	require.Len(t, te, 1)
	assert.Equal(t, "Chest", te[0].ID())
	assert.Equal(t, int32(2), te[0]["y"])
}

func TestPaletted_TranslatesThroughRuntimeTable(t *testing.T) {
	palette := []translate.PaletteEntry{
		{Name: "minecraft:air"},
		{Name: "minecraft:stone"},
	}
	ctx := translate.NewContext(translate.Options{Palette: palette, Logger: logging.NewWriterLogger("t", io.Discard, logging.ERROR)})
	m := ctx.ForVersion(protocol.Bedrock1_16_100)

	c := chunk.New(vec.Vec2{})
	c.SetBlock(0, 0, 0, block.StoneBlockID)
	c.SetBlock(0, 1, 0, block.TorchBlockID)

	p := NewPaletted(0, 255)
	data, err := p.Encode(c, m)
	require.NoError(t, err)
	out, err := p.Decode(c.Coords, data, m)
	require.NoError(t, err)

	assert.Equal(t, block.StoneBlockID, out.Block(0, 0, 0))
	assert.Equal(t, block.AirBlockID, out.Block(0, 1, 0), "Факел не разрешён в палитре")
}

func TestForVersion(t *testing.T) {
	c, ok := ForVersion(protocol.Classic)
	require.True(t, ok)
	assert.Equal(t, protocol.ChunkFlat, c.Format())

	c, ok = ForVersion(protocol.Beta1_7_3)
	require.True(t, ok)
	assert.Equal(t, protocol.ChunkNibble, c.Format())

	c, ok = ForVersion(protocol.Bedrock1_18_0)
	require.True(t, ok)
	assert.Equal(t, 24, c.(Paletted).SlabCount())

	_, ok = ForVersion(protocol.Java1_13_2)
	assert.False(t, ok)
}
