package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := New(12345).Generate(vec.Vec2{X: 3, Z: -2})
	b := New(12345).Generate(vec.Vec2{X: 3, Z: -2})
	assert.Equal(t, a.Arrays(), b.Arrays())

	other := New(999).Generate(vec.Vec2{X: 3, Z: -2})
	assert.NotEqual(t, a.Arrays().Blocks, other.Arrays().Blocks)
}

func TestGenerate_ColumnShape(t *testing.T) {
	g := New(7)
	c := g.Generate(vec.Vec2{X: -5, Z: 11})
	assert.True(t, c.TerrainPopulated())

	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			assert.Equal(t, block.BedrockBlockID, c.Block(x, 0, z))

			surface := g.SurfaceHeight(-5*16+x, 11*16+z)
			assert.GreaterOrEqual(t, surface, MinSurface)
			assert.LessOrEqual(t, surface, MaxSurface)
			assert.NotEqual(t, block.AirBlockID, c.Block(x, surface, z))
			assert.GreaterOrEqual(t, c.Height(x, z), surface+1)

			for y := surface + 1; y < SeaLevel; y++ {
				assert.Equal(t, block.WaterBlockID, c.Block(x, y, z), "Под уровнем моря вода")
			}
		}
	}
}
