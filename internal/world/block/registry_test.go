package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpacity_Table(t *testing.T) {
	assert.Equal(t, OpacityTransparent, Opacity(AirBlockID))
	assert.Equal(t, OpacityTransparent, Opacity(GlassBlockID))
	assert.Equal(t, OpacityFoliage, Opacity(LeavesBlockID))
	assert.Equal(t, OpacityLiquid, Opacity(WaterBlockID))
	assert.Equal(t, OpacitySolid, Opacity(StoneBlockID))
	assert.Equal(t, OpacitySolid, Opacity(200), "Неизвестный блок должен считаться сплошным")
	assert.True(t, IsOpaque(200))
}

func TestLuminance(t *testing.T) {
	assert.Equal(t, byte(14), Luminance(TorchBlockID))
	assert.Equal(t, byte(15), Luminance(GlowstoneBlockID))
	assert.Equal(t, byte(0), Luminance(StoneBlockID))
}

func TestLookupByName(t *testing.T) {
	id, ok := Lookup("minecraft:diamond_ore")
	assert.True(t, ok)
	assert.Equal(t, DiamondOreBlockID, id)

	_, ok = Lookup("minecraft:copper_ore")
	assert.False(t, ok)

	assert.Equal(t, "unknown_200", Name(200))
	assert.Equal(t, 97, Count())
}
