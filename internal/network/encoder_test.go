package network

import (
	"bytes"
	"io"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	mcprotocol "github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/polycraft/internal/codec"
	"github.com/annel0/polycraft/internal/gate"
	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

type fixture struct {
	registry *protocol.Registry
	tc       *translate.Context
	metrics  *metrics.Metrics
}

func newFixture() fixture {
	return fixture{
		registry: protocol.MustDefaultRegistry(),
		tc: translate.NewContext(translate.Options{
			Palette: []translate.PaletteEntry{
				{Name: "minecraft:air"},
				{Name: "minecraft:stone"},
				{Name: "minecraft:dirt"},
			},
			Logger: logging.NewWriterLogger("translate", io.Discard, logging.ERROR),
		}),
		metrics: metrics.NewIsolated(),
	}
}

func (f fixture) gate(v protocol.Version) *gate.Gate {
	return gate.New(f.registry, v, f.tc, f.metrics)
}

func (f fixture) encoder(t *testing.T, v protocol.Version) (encoder, *gate.Gate) {
	t.Helper()
	g := f.gate(v)
	enc, err := newEncoder(f.registry, g, f.metrics)
	require.NoError(t, err)
	return enc, g
}

// layeredChunk камень ниже y=10, земля на y=10
func layeredChunk(coords vec.Vec2) *chunk.Chunk {
	c := chunk.New(coords)
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			for y := 0; y < 10; y++ {
				c.SetBlock(x, y, z, block.StoneBlockID)
			}
			c.SetBlock(x, 10, z, block.DirtBlockID)
		}
	}
	c.GenerateLight(nil)
	return c
}

func TestClassicEncoder_StreamsChunkAsLevel(t *testing.T) {
	f := newFixture()
	enc, g := f.encoder(t, protocol.Classic)
	coords := vec.Vec2{X: 2, Z: 3}

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.ChunkData{Pos: coords, Chunk: layeredChunk(coords)}))

	var id pk.UnsignedByte
	require.NoError(t, readFields(&out, &id))
	require.Equal(t, pk.UnsignedByte(0x02), id)

	var (
		payload []byte
		percent pk.UnsignedByte
	)
	for {
		require.NoError(t, readFields(&out, &id))
		if id == 0x04 {
			break
		}
		require.Equal(t, pk.UnsignedByte(0x03), id)
		var n pk.Short
		piece := make([]byte, levelChunkSize)
		require.NoError(t, readFields(&out, &n))
		_, err := io.ReadFull(&out, piece)
		require.NoError(t, err)
		require.NoError(t, readFields(&out, &percent))
		payload = append(payload, piece[:n]...)
	}
	assert.Equal(t, pk.UnsignedByte(100), percent)

	var dx, dy, dz pk.Short
	require.NoError(t, readFields(&out, &dx, &dy, &dz))
	assert.Equal(t, []pk.Short{16, 128, 16}, []pk.Short{dx, dy, dz})
	assert.Zero(t, out.Len())

	decoded, err := codec.Flat{}.Decode(coords, payload, g.Mapper())
	require.NoError(t, err)
	assert.Equal(t, block.StoneBlockID, decoded.Block(4, 5, 4))
	assert.Equal(t, block.DirtBlockID, decoded.Block(4, 10, 4))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChunksEncoded.WithLabelValues("flat")))
}

func TestClassicEncoder_BlockChangesAreLevelRelative(t *testing.T) {
	f := newFixture()
	enc, _ := f.encoder(t, protocol.Classic)
	coords := vec.Vec2{X: 2, Z: 3}

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.ChunkData{Pos: coords, Chunk: layeredChunk(coords)}))
	out.Reset()

	require.NoError(t, enc.encode(&out, events.BlockChange{Pos: vec.Vec3{X: 33, Y: 12, Z: 49}, Block: 1}))
	assert.Equal(t, []byte{0x06, 0, 1, 0, 12, 0, 1, 1}, out.Bytes())

	out.Reset()
	require.NoError(t, enc.encode(&out, events.BlockChange{Pos: vec.Vec3{X: 0, Y: 12, Z: 0}, Block: 1}))
	assert.Zero(t, out.Len(), "Изменение вне уровня не отправляется")
}

func TestLegacyEncoder_MapChunk(t *testing.T) {
	f := newFixture()
	enc, g := f.encoder(t, protocol.Beta1_7_3)
	coords := vec.Vec2{X: -1, Z: 4}
	c := layeredChunk(coords)

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.ChunkData{Pos: coords, Chunk: c}))

	var (
		id     pk.UnsignedByte
		px, pz pk.Int
		load   pk.Boolean
	)
	require.NoError(t, readFields(&out, &id, &px, &pz, &load))
	assert.Equal(t, pk.UnsignedByte(0x32), id)
	assert.Equal(t, []pk.Int{-1, 4}, []pk.Int{px, pz})
	assert.True(t, bool(load))

	var (
		x, z       pk.Int
		y          pk.Short
		sx, sy, sz pk.UnsignedByte
		size       pk.Int
	)
	require.NoError(t, readFields(&out, &id, &x, &y, &z, &sx, &sy, &sz, &size))
	assert.Equal(t, pk.UnsignedByte(0x33), id)
	assert.Equal(t, []pk.Int{-16, 64}, []pk.Int{x, z})
	assert.Equal(t, []pk.UnsignedByte{15, 127, 15}, []pk.UnsignedByte{sx, sy, sz})
	require.Equal(t, int(size), out.Len())

	decoded, err := codec.Nibble{}.Decode(coords, out.Bytes(), g.Mapper())
	require.NoError(t, err)
	assert.Equal(t, c.Arrays().Blocks, decoded.Arrays().Blocks)
	assert.Equal(t, c.Arrays().SkyLight, decoded.Arrays().SkyLight)
}

func TestLegacyEncoder_SmallPackets(t *testing.T) {
	f := newFixture()
	enc, _ := f.encoder(t, protocol.Beta1_7_3)

	cases := []struct {
		event events.Outbound
		want  []byte
	}{
		{events.BlockChange{Pos: vec.Vec3{X: 1, Y: 64, Z: -1}, Block: 20, Metadata: 3},
			[]byte{0x35, 0, 0, 0, 1, 64, 0xFF, 0xFF, 0xFF, 0xFF, 20, 3}},
		{events.Weather{Raining: true}, []byte{0x46, 1}},
		{events.Weather{Raining: false}, []byte{0x46, 2}},
		{events.TimeUpdate{Time: 6000}, []byte{0x04, 0, 0, 0, 0, 0, 0, 0x17, 0x70}},
		{events.RelativeMove{EntityID: 5, Delta: vec.Vec3Float{X: 1, Y: -0.5}},
			[]byte{0x1F, 0, 0, 0, 5, 32, 0xF0, 0}},
		{events.SetSlot{Window: 0, Slot: 36, Item: 1, Count: 0},
			[]byte{0x67, 0, 0, 36, 0xFF, 0xFF}},
		{events.Chat{Message: "hi"}, []byte{0x03, 0, 2, 0, 'h', 0, 'i'}},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		require.NoError(t, enc.encode(&out, tc.event))
		assert.Equal(t, tc.want, out.Bytes(), events.Describe(tc.event))
	}
}

func TestJavaEncoder_BlockChangePosition(t *testing.T) {
	f := newFixture()

	enc, _ := f.encoder(t, protocol.Java1_16_5)
	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.BlockChange{Pos: vec.Vec3{X: -5, Y: 70, Z: 12}, Block: 9}))
	var p pk.Packet
	require.NoError(t, p.UnPack(&out, -1))
	assert.Equal(t, int32(0x0B), p.ID)
	var (
		pos   pk.Position
		state pk.VarInt
	)
	require.NoError(t, p.Scan(&pos, &state))
	assert.Equal(t, pk.Position{X: -5, Y: 70, Z: 12}, pos)
	assert.Equal(t, pk.VarInt(9), state)

	enc, _ = f.encoder(t, protocol.Java1_13_2)
	out.Reset()
	require.NoError(t, enc.encode(&out, events.BlockChange{Pos: vec.Vec3{X: -5, Y: 70, Z: 12}, Block: 9}))
	require.NoError(t, p.UnPack(&out, -1))
	var packed pk.Long
	require.NoError(t, p.Scan(&packed))
	v := int64(packed)
	assert.Equal(t, int64(-5), v>>38)
	assert.Equal(t, int64(70), (v>>26)&0xFFF)
	assert.Equal(t, int64(12), v<<38>>38)
}

func TestJavaEncoder_RelativeMoveUnits(t *testing.T) {
	f := newFixture()
	enc, _ := f.encoder(t, protocol.Java1_16_5)

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.RelativeMove{EntityID: 3, Delta: vec.Vec3Float{X: 1.5, Z: -2}}))
	var p pk.Packet
	require.NoError(t, p.UnPack(&out, -1))
	assert.Equal(t, int32(0x27), p.ID)
	var (
		eid        pk.VarInt
		dx, dy, dz pk.Short
		onGround   pk.Boolean
	)
	require.NoError(t, p.Scan(&eid, &dx, &dy, &dz, &onGround))
	assert.Equal(t, []pk.Short{6144, 0, -8192}, []pk.Short{dx, dy, dz})
}

// readBedrock читает один элемент батча в p
func readBedrock(t *testing.T, r *bytes.Buffer, p packet.Packet) {
	t.Helper()
	var n uint32
	require.NoError(t, mcprotocol.Varuint32(r, &n))
	body := bytes.NewBuffer(r.Next(int(n)))
	header := &packet.Header{}
	require.NoError(t, header.Read(body))
	require.Equal(t, p.ID(), header.PacketID)
	p.Marshal(mcprotocol.NewReader(body, 0, false))
}

func TestBedrockEncoder_Packets(t *testing.T) {
	f := newFixture()
	enc, _ := f.encoder(t, protocol.Bedrock1_16_100)

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.BlockChange{Pos: vec.Vec3{X: 1, Y: 2, Z: 3}, Block: 7}))
	update := &packet.UpdateBlock{}
	readBedrock(t, &out, update)
	assert.Equal(t, mcprotocol.BlockPos{1, 2, 3}, update.Position)
	assert.Equal(t, uint32(7), update.NewBlockRuntimeID)

	require.Error(t, enc.encode(&out, events.RelativeMove{EntityID: 4, Delta: vec.Vec3Float{X: 1}}))
	assert.Zero(t, out.Len(), "Смещение без известной позиции не отправляется")

	require.NoError(t, enc.encode(&out, events.Teleport{EntityID: 4, Pos: vec.Vec3Float{X: 10, Y: 64, Z: -3}}))
	readBedrock(t, &out, &packet.MoveActorAbsolute{})
	require.NoError(t, enc.encode(&out, events.RelativeMove{EntityID: 4, Delta: vec.Vec3Float{X: 1, Y: 0.5}}))
	move := &packet.MoveActorDelta{}
	readBedrock(t, &out, move)
	assert.InDelta(t, 11, move.Position.X(), 1e-6)
	assert.InDelta(t, 64.5, move.Position.Y(), 1e-6)
	assert.InDelta(t, -3, move.Position.Z(), 1e-6)
}

func TestBedrockEncoder_LevelChunk(t *testing.T) {
	f := newFixture()
	enc, g := f.encoder(t, protocol.Bedrock1_18_0)
	coords := vec.Vec2{X: 7, Z: -7}
	c := layeredChunk(coords)

	var out bytes.Buffer
	require.NoError(t, enc.encode(&out, events.ChunkData{Pos: coords, Chunk: c}))
	lc := &packet.LevelChunk{}
	readBedrock(t, &out, lc)

	p := codec.NewPaletted(protocol.Bedrock1_18_0.MinY, protocol.Bedrock1_18_0.MaxY)
	assert.Equal(t, mcprotocol.ChunkPos{7, -7}, lc.Position)
	assert.Equal(t, uint32(p.SlabCount()), lc.SubChunkCount)

	decoded, err := p.Decode(coords, lc.RawPayload, g.Mapper())
	require.NoError(t, err)
	assert.Equal(t, block.StoneBlockID, decoded.Block(0, 0, 0))
	assert.Equal(t, block.DirtBlockID, decoded.Block(15, 10, 15))
	assert.Equal(t, block.AirBlockID, decoded.Block(15, 11, 15))
}
