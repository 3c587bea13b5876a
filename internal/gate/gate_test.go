package gate

import (
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
				{Name: "minecraft:cobblestone"},
			},
			Logger: logging.NewWriterLogger("translate", io.Discard, logging.ERROR),
		}),
		metrics: metrics.NewIsolated(),
	}
}

func (f fixture) gate(v protocol.Version) *Gate {
	return New(f.registry, v, f.tc, f.metrics)
}

func TestGate_UnsupportedPacketsAreDropped(t *testing.T) {
	f := newFixture()

	cases := []struct {
		version protocol.Version
		event   events.Outbound
	}{
		{protocol.Prototype, events.Chat{Message: "привет"}},
		{protocol.Classic, events.Weather{Raining: true}},
		{protocol.Classic, events.TimeUpdate{Time: 6000}},
		{protocol.Alpha1_2_6, events.Weather{Raining: true}},
		{protocol.Prototype, events.RelativeMove{EntityID: 1, Delta: vec.Vec3Float{X: 0.5}}},
		{protocol.Java1_16_5, events.ChunkData{Chunk: chunk.New(vec.Vec2{})}},
	}
	for _, tc := range cases {
		out, d := f.gate(tc.version).Filter(tc.event)
		assert.Equal(t, Drop, d, "%s: %s", tc.version.Name, events.Describe(tc.event))
		assert.Nil(t, out)
	}
}

func TestGate_SupportedPacketsPass(t *testing.T) {
	f := newFixture()

	out, d := f.gate(protocol.Classic).Filter(events.Chat{Message: "привет"})
	assert.Equal(t, Pass, d)
	assert.Equal(t, events.Chat{Message: "привет"}, out)

	_, d = f.gate(protocol.Beta1_5_01).Filter(events.Weather{Raining: true})
	assert.Equal(t, Pass, d)

	_, d = f.gate(protocol.Classic).Filter(events.ChunkData{Chunk: chunk.New(vec.Vec2{})})
	assert.Equal(t, Pass, d, "Classic получает чанки потоком уровня")
}

func TestGate_BlockChangeRewritten(t *testing.T) {
	f := newFixture()
	ev := events.BlockChange{Pos: vec.Vec3{X: 1, Y: 64, Z: 2}, Block: uint32(block.CobblestoneBlockID), Metadata: 3}

	out, d := f.gate(protocol.Prototype).Filter(ev)
	require.Equal(t, Rewrite, d)
	assert.Equal(t, uint32(1), out.(events.BlockChange).Block)
	assert.Equal(t, byte(0), out.(events.BlockChange).Metadata, "Прототип не знает метаданных")

	out, _ = f.gate(protocol.Beta1_7_3).Filter(ev)
	assert.Equal(t, uint32(block.CobblestoneBlockID), out.(events.BlockChange).Block)
	assert.Equal(t, byte(3), out.(events.BlockChange).Metadata)
	assert.Equal(t, ev.Pos, out.(events.BlockChange).Pos)

	out, _ = f.gate(protocol.Java1_13_2).Filter(ev)
	assert.Equal(t, f.tc.FlattenedState(protocol.SpaceFlattened113, int(block.CobblestoneBlockID)), out.(events.BlockChange).Block)
	assert.Equal(t, byte(0), out.(events.BlockChange).Metadata)

	out, _ = f.gate(protocol.Bedrock1_16_100).Filter(ev)
	assert.Equal(t, uint32(2), out.(events.BlockChange).Block)
}

func TestGate_SetSlotItemRewritten(t *testing.T) {
	f := newFixture()

	out, d := f.gate(protocol.Alpha1_0_15).Filter(events.SetSlot{Slot: 36, Item: uint32(block.GlowstoneBlockID), Count: 1})
	require.Equal(t, Rewrite, d)
	assert.Equal(t, uint32(translate.GenericSolid), out.(events.SetSlot).Item, "Светокамень неизвестен a1.0.15")

	out, d = f.gate(protocol.Beta1_7_3).Filter(events.SetSlot{Slot: 36, Item: 276, Count: 1})
	require.Equal(t, Pass, d, "Предметы вне блочного домена не переводятся")
	assert.Equal(t, uint32(276), out.(events.SetSlot).Item)
}

func TestGate_SetSlotDroppedWithoutItemTable(t *testing.T) {
	f := newFixture()

	for _, v := range []protocol.Version{protocol.Java1_13_2, protocol.Java1_16_5, protocol.Bedrock1_16_100, protocol.Bedrock1_18_0} {
		out, d := f.gate(v).Filter(events.SetSlot{Slot: 36, Item: uint32(block.LogBlockID), Count: 1})
		assert.Equal(t, Drop, d, "%s: id блока не является id предмета", v.Name)
		assert.Nil(t, out)
	}
}

func TestGate_RelativeMoveRange(t *testing.T) {
	f := newFixture()
	beta := f.gate(protocol.Beta1_7_3)

	_, d := beta.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{X: 3, Y: -3.5}})
	assert.Equal(t, Pass, d, "3 блока = 96 единиц")

	_, d = beta.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{Z: 4}})
	assert.Equal(t, Drop, d, "4 блока = 128 единиц, вне int8")

	_, d = beta.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{Z: -4}})
	assert.Equal(t, Pass, d, "-128 единиц ещё помещается")

	java := f.gate(protocol.Java1_16_5)
	_, d = java.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{X: 7.5}, HasLook: true})
	assert.Equal(t, Pass, d)
	_, d = java.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{X: 8}})
	assert.Equal(t, Drop, d)

	bedrock := f.gate(protocol.Bedrock1_18_0)
	_, d = bedrock.Filter(events.Teleport{EntityID: 7, Pos: vec.Vec3Float{Y: 64}})
	require.Equal(t, Pass, d)
	_, d = bedrock.Filter(events.RelativeMove{EntityID: 7, Delta: vec.Vec3Float{Y: 300}})
	assert.Equal(t, Pass, d, "Bedrock передаёт дельты без ограничения")
}

func TestGate_BedrockMoveNeedsKnownPosition(t *testing.T) {
	f := newFixture()
	g := f.gate(protocol.Bedrock1_16_100)

	out, d := g.Filter(events.RelativeMove{EntityID: 9, Delta: vec.Vec3Float{X: 1}})
	assert.Equal(t, Drop, d)
	assert.Nil(t, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisions.WithLabelValues("bedrock 1.16.100", "relative_move", "drop")))

	_, d = g.Filter(events.Teleport{EntityID: 9, Pos: vec.Vec3Float{X: 3, Y: 70}})
	require.Equal(t, Pass, d)
	_, d = g.Filter(events.RelativeMove{EntityID: 9, Delta: vec.Vec3Float{X: 1}})
	assert.Equal(t, Pass, d)

	_, d = f.gate(protocol.Beta1_7_3).Filter(events.RelativeMove{EntityID: 9, Delta: vec.Vec3Float{X: 1}})
	assert.Equal(t, Pass, d, "Legacy клиенты получают относительные смещения напрямую")
}

func TestGate_CountsDecisions(t *testing.T) {
	f := newFixture()
	g := f.gate(protocol.Classic)

	g.Filter(events.Weather{Raining: true})
	g.Filter(events.Weather{Raining: false})
	g.Filter(events.Chat{Message: "a"})

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.GateDecisions.WithLabelValues("c0.30", "weather", "drop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisions.WithLabelValues("c0.30", "chat", "pass")))
}

func TestGate_PanicsOnNil(t *testing.T) {
	f := newFixture()
	assert.Panics(t, func() { f.gate(protocol.Beta1_7_3).Filter(nil) })
}
