// Package gen генерирует ландшафт для чанков, которых нет в хранилище.
package gen

import (
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
)

// Константы высот для генерации
const (
	SeaLevel    = 64
	MinSurface  = 40
	MaxSurface  = 110
	ShallowSand = SeaLevel + 2
)

// Generator генерирует ландшафт мира. Шум строится один раз и дальше
// только читается, поэтому генератор безопасен для нескольких воркеров.
type Generator struct {
	Seed          int64
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	ForestDensity float64 // Плотность лесов (от 0 до 1)

	height *perlin.Perlin
	biome  *perlin.Perlin
}

// New создаёт генератор с указанным сидом
func New(seed int64) *Generator {
	return &Generator{
		Seed:          seed,
		NoiseScale:    0.015,
		BiomeScale:    0.004,
		ForestDensity: 0.01,
		height:        perlin.NewPerlin(2, 2, 3, seed),
		biome:         perlin.NewPerlin(2, 2, 2, seed+42),
	}
}

// noise01 переводит шум из [-1, 1] в [0, 1]
func noise01(p *perlin.Perlin, x, z float64) float64 {
	v := (p.Noise2D(x, z) + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SurfaceHeight высота поверхности в глобальной колонке
func (g *Generator) SurfaceHeight(x, z int) int {
	n := noise01(g.height, float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return MinSurface + int(n*float64(MaxSurface-MinSurface))
}

func (g *Generator) biomeAt(x, z, surface int) BiomeType {
	if surface < SeaLevel {
		return BiomeWater
	}
	if surface > 90 {
		return BiomeMountains
	}
	b := noise01(g.biome, float64(x)*g.BiomeScale, float64(z)*g.BiomeScale)
	switch {
	case b < 0.35:
		return BiomeDesert
	case b > 0.65:
		return BiomeForest
	default:
		return BiomePlains
	}
}

// Generate генерирует чанк по его координатам. Освещение не считается:
// это делает загрузчик с учётом соседей.
func (g *Generator) Generate(coords vec.Vec2) *chunk.Chunk {
	c := chunk.New(coords)

	// Для каждого чанка свой сид на основе глобального сида и координат
	chunkSeed := g.Seed + int64(coords.X)*341873128712 + int64(coords.Z)*132897987541
	rng := rand.New(rand.NewSource(chunkSeed))

	baseX, baseZ := coords.X<<4, coords.Z<<4
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			gx, gz := baseX+x, baseZ+z
			surface := g.SurfaceHeight(gx, gz)
			biome := g.biomeAt(gx, gz, surface)
			g.fillColumn(c, x, z, surface, biome, rng)

			if biome == BiomeForest && rng.Float64() < 0.05 || biome == BiomePlains && rng.Float64() < g.ForestDensity {
				g.placeTree(c, x, surface+1, z, rng)
			}
		}
	}
	c.SetTerrainPopulated(true)
	return c
}

func (g *Generator) fillColumn(c *chunk.Chunk, x, z, surface int, biome BiomeType, rng *rand.Rand) {
	top, filler := topBlocks(biome, surface)
	for y := 0; y <= surface && y < chunk.Height; y++ {
		var id block.BlockID
		switch {
		case y == 0:
			id = block.BedrockBlockID
		case y == surface:
			id = top
		case y > surface-4:
			id = filler
		default:
			id = oreOrStone(y, rng)
		}
		c.SetBlock(x, y, z, id)
	}
	for y := surface + 1; y < SeaLevel; y++ {
		c.SetBlock(x, y, z, block.WaterBlockID)
	}
}

func topBlocks(biome BiomeType, surface int) (top, filler block.BlockID) {
	switch {
	case biome == BiomeDesert, surface <= ShallowSand && surface >= SeaLevel-3:
		return block.SandBlockID, block.SandBlockID
	case biome == BiomeWater:
		return block.GravelBlockID, block.DirtBlockID
	case biome == BiomeMountains:
		return block.StoneBlockID, block.StoneBlockID
	default:
		return block.GrassBlockID, block.DirtBlockID
	}
}

func oreOrStone(y int, rng *rand.Rand) block.BlockID {
	r := rng.Float64()
	switch {
	case y < 16 && r < 0.002:
		return block.DiamondOreBlockID
	case y < 32 && r < 0.006:
		return block.GoldOreBlockID
	case y < 64 && r < 0.012:
		return block.IronOreBlockID
	case r < 0.02:
		return block.CoalOreBlockID
	default:
		return block.StoneBlockID
	}
}

// placeTree ставит дерево целиком внутри чанка, у границы дерево не ставится
func (g *Generator) placeTree(c *chunk.Chunk, x, y, z int, rng *rand.Rand) {
	if x < 2 || x > chunk.Width-3 || z < 2 || z > chunk.Depth-3 {
		return
	}
	trunk := 4 + rng.Intn(2)
	if y+trunk+2 >= chunk.Height {
		return
	}
	for dy := trunk - 2; dy <= trunk+1; dy++ {
		r := 2
		if dy >= trunk {
			r = 1
		}
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if c.Block(x+dx, y+dy, z+dz) == block.AirBlockID {
					c.SetBlock(x+dx, y+dy, z+dz, block.LeavesBlockID)
				}
			}
		}
	}
	for dy := 0; dy < trunk; dy++ {
		c.SetBlock(x, y+dy, z, block.LogBlockID)
	}
}
