// Package block содержит знания о канонических legacy блоках:
// идентификаторы, имена, непрозрачность и светимость.
package block

import (
	"strconv"
	"strings"
)

// BlockID канонический legacy идентификатор блока (0-255)
type BlockID = byte

// Константы ID блоков канонического пространства
const (
	AirBlockID            BlockID = 0
	StoneBlockID          BlockID = 1
	GrassBlockID          BlockID = 2
	DirtBlockID           BlockID = 3
	CobblestoneBlockID    BlockID = 4
	PlanksBlockID         BlockID = 5
	SaplingBlockID        BlockID = 6
	BedrockBlockID        BlockID = 7
	FlowingWaterBlockID   BlockID = 8
	WaterBlockID          BlockID = 9
	FlowingLavaBlockID    BlockID = 10
	LavaBlockID           BlockID = 11
	SandBlockID           BlockID = 12
	GravelBlockID         BlockID = 13
	GoldOreBlockID        BlockID = 14
	IronOreBlockID        BlockID = 15
	CoalOreBlockID        BlockID = 16
	LogBlockID            BlockID = 17
	LeavesBlockID         BlockID = 18
	GlassBlockID          BlockID = 20
	WoolBlockID           BlockID = 35
	TorchBlockID          BlockID = 50
	FireBlockID           BlockID = 51
	DiamondOreBlockID     BlockID = 56
	SnowLayerBlockID      BlockID = 78
	IceBlockID            BlockID = 79
	GlowstoneBlockID      BlockID = 89
	TrapdoorBlockID       BlockID = 96
	MaxCanonicalBlockID   BlockID = TrapdoorBlockID
	canonicalBlockTypes           = int(MaxCanonicalBlockID) + 1
)

// Непрозрачность для света
const (
	OpacityTransparent byte = 0
	OpacityFoliage     byte = 1
	OpacityLiquid      byte = 3
	OpacitySolid       byte = 15
)

// Definition свойства одного блока
type Definition struct {
	ID        BlockID
	Name      string
	Opacity   byte
	Luminance byte
}

// definitions таблица канонической эры. Заполняется один раз при инициализации
// пакета и дальше только читается.
var definitions = [...]Definition{
	{0, "air", OpacityTransparent, 0},
	{1, "stone", OpacitySolid, 0},
	{2, "grass", OpacitySolid, 0},
	{3, "dirt", OpacitySolid, 0},
	{4, "cobblestone", OpacitySolid, 0},
	{5, "planks", OpacitySolid, 0},
	{6, "sapling", OpacityTransparent, 0},
	{7, "bedrock", OpacitySolid, 0},
	{8, "flowing_water", OpacityLiquid, 0},
	{9, "water", OpacityLiquid, 0},
	{10, "flowing_lava", OpacityLiquid, 15},
	{11, "lava", OpacityLiquid, 15},
	{12, "sand", OpacitySolid, 0},
	{13, "gravel", OpacitySolid, 0},
	{14, "gold_ore", OpacitySolid, 0},
	{15, "iron_ore", OpacitySolid, 0},
	{16, "coal_ore", OpacitySolid, 0},
	{17, "log", OpacitySolid, 0},
	{18, "leaves", OpacityFoliage, 0},
	{19, "sponge", OpacitySolid, 0},
	{20, "glass", OpacityTransparent, 0},
	{21, "lapis_ore", OpacitySolid, 0},
	{22, "lapis_block", OpacitySolid, 0},
	{23, "dispenser", OpacitySolid, 0},
	{24, "sandstone", OpacitySolid, 0},
	{25, "noteblock", OpacitySolid, 0},
	{26, "bed", OpacityTransparent, 0},
	{27, "golden_rail", OpacityTransparent, 0},
	{28, "detector_rail", OpacityTransparent, 0},
	{29, "sticky_piston", OpacitySolid, 0},
	{30, "web", OpacityFoliage, 0},
	{31, "tallgrass", OpacityTransparent, 0},
	{32, "deadbush", OpacityTransparent, 0},
	{33, "piston", OpacitySolid, 0},
	{34, "piston_head", OpacityTransparent, 0},
	{35, "wool", OpacitySolid, 0},
	{36, "piston_extension", OpacityTransparent, 0},
	{37, "yellow_flower", OpacityTransparent, 0},
	{38, "red_flower", OpacityTransparent, 0},
	{39, "brown_mushroom", OpacityTransparent, 1},
	{40, "red_mushroom", OpacityTransparent, 0},
	{41, "gold_block", OpacitySolid, 0},
	{42, "iron_block", OpacitySolid, 0},
	{43, "double_stone_slab", OpacitySolid, 0},
	{44, "stone_slab", OpacitySolid, 0},
	{45, "brick_block", OpacitySolid, 0},
	{46, "tnt", OpacitySolid, 0},
	{47, "bookshelf", OpacitySolid, 0},
	{48, "mossy_cobblestone", OpacitySolid, 0},
	{49, "obsidian", OpacitySolid, 0},
	{50, "torch", OpacityTransparent, 14},
	{51, "fire", OpacityTransparent, 15},
	{52, "mob_spawner", OpacityTransparent, 0},
	{53, "oak_stairs", OpacitySolid, 0},
	{54, "chest", OpacityTransparent, 0},
	{55, "redstone_wire", OpacityTransparent, 0},
	{56, "diamond_ore", OpacitySolid, 0},
	{57, "diamond_block", OpacitySolid, 0},
	{58, "crafting_table", OpacitySolid, 0},
	{59, "wheat", OpacityTransparent, 0},
	{60, "farmland", OpacitySolid, 0},
	{61, "furnace", OpacitySolid, 0},
	{62, "lit_furnace", OpacitySolid, 13},
	{63, "standing_sign", OpacityTransparent, 0},
	{64, "wooden_door", OpacityTransparent, 0},
	{65, "ladder", OpacityTransparent, 0},
	{66, "rail", OpacityTransparent, 0},
	{67, "stone_stairs", OpacitySolid, 0},
	{68, "wall_sign", OpacityTransparent, 0},
	{69, "lever", OpacityTransparent, 0},
	{70, "stone_pressure_plate", OpacityTransparent, 0},
	{71, "iron_door", OpacityTransparent, 0},
	{72, "wooden_pressure_plate", OpacityTransparent, 0},
	{73, "redstone_ore", OpacitySolid, 0},
	{74, "lit_redstone_ore", OpacitySolid, 9},
	{75, "unlit_redstone_torch", OpacityTransparent, 0},
	{76, "redstone_torch", OpacityTransparent, 7},
	{77, "stone_button", OpacityTransparent, 0},
	{78, "snow_layer", OpacityTransparent, 0},
	{79, "ice", OpacityLiquid, 0},
	{80, "snow", OpacitySolid, 0},
	{81, "cactus", OpacityTransparent, 0},
	{82, "clay", OpacitySolid, 0},
	{83, "reeds", OpacityTransparent, 0},
	{84, "jukebox", OpacitySolid, 0},
	{85, "fence", OpacityTransparent, 0},
	{86, "pumpkin", OpacitySolid, 0},
	{87, "netherrack", OpacitySolid, 0},
	{88, "soul_sand", OpacitySolid, 0},
	{89, "glowstone", OpacitySolid, 15},
	{90, "portal", OpacityTransparent, 11},
	{91, "lit_pumpkin", OpacitySolid, 15},
	{92, "cake", OpacityTransparent, 0},
	{93, "unpowered_repeater", OpacityTransparent, 0},
	{94, "powered_repeater", OpacityTransparent, 9},
	{95, "locked_chest", OpacitySolid, 0},
	{96, "trapdoor", OpacityTransparent, 0},
}

var (
	opacity   [256]byte
	luminance [256]byte
	known     [256]bool
	byName    = make(map[string]BlockID, len(definitions))
)

func init() {
	for i := range opacity {
		opacity[i] = OpacitySolid
	}
	for i, d := range definitions {
		if int(d.ID) != i {
			panic("block: таблица определений должна быть упорядочена по ID")
		}
		opacity[d.ID] = d.Opacity
		luminance[d.ID] = d.Luminance
		known[d.ID] = true
		byName[d.Name] = d.ID
	}
}

// Opacity возвращает непрозрачность блока. Неизвестные ID считаются сплошными.
func Opacity(id BlockID) byte {
	return opacity[id]
}

// Luminance возвращает уровень собственного свечения блока
func Luminance(id BlockID) byte {
	return luminance[id]
}

// IsKnown проверяет, определён ли блок в канонической эре
func IsKnown(id BlockID) bool {
	return known[id]
}

// IsOpaque сообщает, полностью ли блок задерживает свет
func IsOpaque(id BlockID) bool {
	return opacity[id] >= OpacitySolid
}

// Get возвращает определение блока
func Get(id BlockID) (Definition, bool) {
	if !known[id] {
		return Definition{}, false
	}
	return definitions[id], true
}

// Name возвращает имя блока или "unknown_<id>"
func Name(id BlockID) string {
	if d, ok := Get(id); ok {
		return d.Name
	}
	return "unknown_" + strconv.Itoa(int(id))
}

// Lookup ищет блок по имени, допускается префикс "minecraft:"
func Lookup(name string) (BlockID, bool) {
	id, ok := byName[strings.TrimPrefix(name, "minecraft:")]
	return id, ok
}

// Count возвращает число блоков канонической эры
func Count() int {
	return canonicalBlockTypes
}
