package chunk

import "github.com/annel0/polycraft/internal/world/block"

// MaxLight максимальный уровень освещения
const MaxLight = 15

// NeighbourLight даёт доступ к свету загруженных соседних чанков.
// Координаты локальные относительно текущего чанка: x или z могут быть -1 или 16.
// ok == false, если соседний чанк не загружен.
type NeighbourLight interface {
	SkyLightAt(x, y, z int) (light byte, ok bool)
}

var faces = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// attenuation ослабление света при входе в ячейку с блоком id
func attenuation(id byte) byte {
	op := block.Opacity(id)
	if op < 1 {
		return 1
	}
	return op
}

// GenerateSkyLight пересчитывает небесный свет с нуля: проход по колонкам,
// затем BFS от всех полностью освещённых ячеек и от света соседей.
// Детерминирован и идемпотентен. neighbours может быть nil.
func (c *Chunk) GenerateSkyLight(neighbours NeighbourLight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := make([]int32, 0, Width*Depth*16)

	// Проход 1: всё, что на уровне карты высот и выше, освещено полностью
	for x := 0; x < Width; x++ {
		for z := 0; z < Depth; z++ {
			h := int(c.heightMap[x*Depth+z])
			for y := 0; y < Height; y++ {
				i := Index(x, y, z)
				if y >= h {
					c.skyLight.Set(i, MaxLight)
					queue = append(queue, int32(i))
				} else {
					c.skyLight.Set(i, 0)
				}
			}
		}
	}

	if neighbours != nil {
		queue = c.seedFromNeighbours(neighbours, queue)
	}

	c.propagate(c.skyLight, queue)
	c.dirty = true
}

// seedFromNeighbours переносит свет через границу чанка по горизонтали
func (c *Chunk) seedFromNeighbours(n NeighbourLight, queue []int32) []int32 {
	seed := func(x, z, nx, nz int) {
		for y := 0; y < Height; y++ {
			i := Index(x, y, z)
			id := c.blocks[i]
			if block.IsOpaque(id) {
				continue
			}
			l, ok := n.SkyLightAt(nx, y, nz)
			if !ok {
				return
			}
			a := attenuation(id)
			if l <= a {
				continue
			}
			if cand := l - a; cand > c.skyLight.Get(i) {
				c.skyLight.Set(i, cand)
				queue = append(queue, int32(i))
			}
		}
	}
	for k := 0; k < Width; k++ {
		seed(0, k, -1, k)
		seed(Width-1, k, Width, k)
		seed(k, 0, k, -1)
		seed(k, Depth-1, k, Depth)
	}
	return queue
}

// propagate мультиисточниковый BFS до неподвижной точки.
// В непрозрачные ячейки свет не записывается и дальше через них не идёт.
func (c *Chunk) propagate(field NibbleArray, queue []int32) {
	for head := 0; head < len(queue); head++ {
		i := int(queue[head])
		light := field.Get(i)
		if light <= 1 {
			continue
		}
		x, y, z := Coords(i)
		for _, f := range faces {
			nx, ny, nz := x+f[0], y+f[1], z+f[2]
			if nx < 0 || nx >= Width || ny < 0 || ny >= Height || nz < 0 || nz >= Depth {
				continue
			}
			ni := Index(nx, ny, nz)
			id := c.blocks[ni]
			if block.IsOpaque(id) {
				continue
			}
			a := attenuation(id)
			if light <= a {
				continue
			}
			if cand := light - a; cand > field.Get(ni) {
				field.Set(ni, cand)
				queue = append(queue, int32(ni))
			}
		}
	}
}

// GenerateBlockLight пересчитывает свет от светящихся блоков тем же BFS.
// Светящийся блок хранит собственную светимость, даже если он непрозрачен.
func (c *Chunk) GenerateBlockLight() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockLight.Fill(0)
	var queue []int32
	for i, id := range c.blocks {
		if lum := block.Luminance(id); lum > 0 {
			c.blockLight.Set(i, lum)
			queue = append(queue, int32(i))
		}
	}
	c.propagate(c.blockLight, queue)
	c.dirty = true
}

// GenerateLight пересчитывает оба поля освещения
func (c *Chunk) GenerateLight(neighbours NeighbourLight) {
	c.GenerateSkyLight(neighbours)
	c.GenerateBlockLight()
}
