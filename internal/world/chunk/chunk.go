// Package chunk содержит каноническую модель чанка 16x128x16 и движок освещения.
package chunk

import (
	"fmt"
	"sync"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
)

// Размеры канонического чанка
const (
	Width  = 16
	Depth  = 16
	Height = 128
	Volume = Width * Depth * Height
)

// Index возвращает индекс ячейки: x старший, затем z, y внутренний
func Index(x, y, z int) int {
	return y + z*Height + x*Height*Depth
}

// Coords обратная операция к Index
func Coords(i int) (x, y, z int) {
	return i / (Height * Depth), i % Height, (i / Height) % Depth
}

// Record непрозрачная запись сущности или блок-сущности (дерево тегов).
// Ядро читает только идентификатор.
type Record map[string]any

// ID возвращает строковый идентификатор записи
func (r Record) ID() string {
	if id, ok := r["id"].(string); ok {
		return id
	}
	return ""
}

// Arrays копия параллельных массивов чанка
type Arrays struct {
	Blocks     []byte
	Metadata   NibbleArray
	BlockLight NibbleArray
	SkyLight   NibbleArray
	HeightMap  []byte
}

// Chunk канонический чанк. Все экспортируемые методы берут блокировку,
// один писатель и много читателей.
type Chunk struct {
	Coords vec.Vec2

	mu         sync.RWMutex
	blocks     []byte
	metadata   NibbleArray
	blockLight NibbleArray
	skyLight   NibbleArray
	heightMap  []byte

	entities     []Record
	tileEntities []Record

	terrainPopulated bool
	lastUpdate       int64
	dirty            bool
}

// New создаёт пустой чанк (весь воздух, без света)
func New(coords vec.Vec2) *Chunk {
	return &Chunk{
		Coords:     coords,
		blocks:     make([]byte, Volume),
		metadata:   NewNibbleArray(Volume),
		blockLight: NewNibbleArray(Volume),
		skyLight:   NewNibbleArray(Volume),
		heightMap:  make([]byte, Width*Depth),
	}
}

// FromArrays собирает чанк из готовых массивов (загрузка с диска, декодер).
// Свет не пересчитывается. Если карта высот не передана, она вычисляется.
func FromArrays(coords vec.Vec2, a Arrays) (*Chunk, error) {
	if len(a.Blocks) != Volume {
		return nil, fmt.Errorf("неверный размер массива блоков: %d, ожидалось %d", len(a.Blocks), Volume)
	}
	for name, n := range map[string]NibbleArray{"Data": a.Metadata, "BlockLight": a.BlockLight, "SkyLight": a.SkyLight} {
		if n != nil && len(n) != Volume/2 {
			return nil, fmt.Errorf("неверный размер массива %s: %d, ожидалось %d", name, len(n), Volume/2)
		}
	}
	if a.HeightMap != nil && len(a.HeightMap) != Width*Depth {
		return nil, fmt.Errorf("неверный размер карты высот: %d", len(a.HeightMap))
	}

	c := New(coords)
	copy(c.blocks, a.Blocks)
	if a.Metadata != nil {
		copy(c.metadata, a.Metadata)
	}
	if a.BlockLight != nil {
		copy(c.blockLight, a.BlockLight)
	}
	if a.SkyLight != nil {
		copy(c.skyLight, a.SkyLight)
	}
	if a.HeightMap != nil {
		copy(c.heightMap, a.HeightMap)
	} else {
		c.recomputeHeightMap()
	}
	return c, nil
}

// Block возвращает id блока
func (c *Chunk) Block(x, y, z int) byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[Index(x, y, z)]
}

// SetBlock записывает id блока и поддерживает карту высот
func (c *Chunk) SetBlock(x, y, z int, id byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBlock(x, y, z, id)
}

// SetBlockAndMetadata записывает блок вместе с метаданными
func (c *Chunk) SetBlockAndMetadata(x, y, z int, id, meta byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBlock(x, y, z, id)
	c.metadata.Set(Index(x, y, z), meta)
}

func (c *Chunk) setBlock(x, y, z int, id byte) {
	c.blocks[Index(x, y, z)] = id
	c.dirty = true

	col := x*Depth + z
	h := int(c.heightMap[col])
	switch {
	case id != block.AirBlockID && y >= h:
		c.heightMap[col] = byte(y + 1)
	case id == block.AirBlockID && y == h-1:
		// Убрали верхний блок колонки: ищем новую вершину ниже
		top := 0
		for yy := y - 1; yy >= 0; yy-- {
			if c.blocks[Index(x, yy, z)] != block.AirBlockID {
				top = yy + 1
				break
			}
		}
		c.heightMap[col] = byte(top)
	}
}

// Metadata возвращает полубайт метаданных
func (c *Chunk) Metadata(x, y, z int) byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata.Get(Index(x, y, z))
}

// SetMetadata записывает полубайт метаданных
func (c *Chunk) SetMetadata(x, y, z int, meta byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata.Set(Index(x, y, z), meta)
	c.dirty = true
}

// SkyLight возвращает небесный свет ячейки
func (c *Chunk) SkyLight(x, y, z int) byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skyLight.Get(Index(x, y, z))
}

// BlockLight возвращает свет от блоков
func (c *Chunk) BlockLight(x, y, z int) byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockLight.Get(Index(x, y, z))
}

// Height возвращает значение карты высот колонки (верхний непустой y + 1)
func (c *Chunk) Height(x, z int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int(c.heightMap[x*Depth+z])
}

func (c *Chunk) recomputeHeightMap() {
	for x := 0; x < Width; x++ {
		for z := 0; z < Depth; z++ {
			top := 0
			for y := Height - 1; y >= 0; y-- {
				if c.blocks[Index(x, y, z)] != block.AirBlockID {
					top = y + 1
					break
				}
			}
			c.heightMap[x*Depth+z] = byte(top)
		}
	}
}

// Arrays возвращает копии всех массивов
func (c *Chunk) Arrays() Arrays {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arrays()
}

func (c *Chunk) arrays() Arrays {
	blocks := make([]byte, len(c.blocks))
	copy(blocks, c.blocks)
	hm := make([]byte, len(c.heightMap))
	copy(hm, c.heightMap)
	return Arrays{
		Blocks:     blocks,
		Metadata:   c.metadata.Clone(),
		BlockLight: c.blockLight.Clone(),
		SkyLight:   c.skyLight.Clone(),
		HeightMap:  hm,
	}
}

// Snapshot возвращает глубокую копию чанка для кодирования без блокировок
func (c *Chunk) Snapshot() *Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a := c.arrays()
	return &Chunk{
		Coords:           c.Coords,
		blocks:           a.Blocks,
		metadata:         a.Metadata,
		blockLight:       a.BlockLight,
		skyLight:         a.SkyLight,
		heightMap:        a.HeightMap,
		entities:         cloneRecords(c.entities),
		tileEntities:     cloneRecords(c.tileEntities),
		terrainPopulated: c.terrainPopulated,
		lastUpdate:       c.lastUpdate,
		dirty:            c.dirty,
	}
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Entities возвращает копию списка сущностей
func (c *Chunk) Entities() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRecords(c.entities)
}

// TileEntities возвращает копию списка блок-сущностей
func (c *Chunk) TileEntities() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRecords(c.tileEntities)
}

// SetEntities заменяет список сущностей
func (c *Chunk) SetEntities(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = cloneRecords(records)
	c.dirty = true
}

// SetTileEntities заменяет список блок-сущностей
func (c *Chunk) SetTileEntities(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tileEntities = cloneRecords(records)
	c.dirty = true
}

// TerrainPopulated сообщает, прошла ли декорация ландшафта
func (c *Chunk) TerrainPopulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terrainPopulated
}

// SetTerrainPopulated выставляет флаг декорации
func (c *Chunk) SetTerrainPopulated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terrainPopulated = v
	c.dirty = true
}

// LastUpdate возвращает тик последнего изменения
func (c *Chunk) LastUpdate() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Touch отмечает тик последнего изменения
func (c *Chunk) Touch(tick int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdate = tick
	c.dirty = true
}

// Dirty сообщает, есть ли несохранённые изменения
func (c *Chunk) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// MarkSaved сбрасывает флаг изменений после записи на диск
func (c *Chunk) MarkSaved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}

// RestoreFlags восстанавливает флаги при загрузке, не помечая чанк изменённым
func (c *Chunk) RestoreFlags(populated bool, lastUpdate int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terrainPopulated = populated
	c.lastUpdate = lastUpdate
}
