package storage

import (
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// chunkRecord корневой компаунд файла чанка
type chunkRecord struct {
	Level levelRecord `nbt:"Level"`
}

type levelRecord struct {
	XPos             int32            `nbt:"xPos"`
	ZPos             int32            `nbt:"zPos"`
	TerrainPopulated int8             `nbt:"TerrainPopulated"`
	LastUpdate       int64            `nbt:"LastUpdate"`
	Blocks           []byte           `nbt:"Blocks"`
	Data             []byte           `nbt:"Data"`
	BlockLight       []byte           `nbt:"BlockLight"`
	SkyLight         []byte           `nbt:"SkyLight"`
	HeightMap        []byte           `nbt:"HeightMap"`
	Entities         []map[string]any `nbt:"Entities"`
	TileEntities     []map[string]any `nbt:"TileEntities"`
}

func toRecord(c *chunk.Chunk) chunkRecord {
	snap := c.Snapshot()
	a := snap.Arrays()

	var populated int8
	if snap.TerrainPopulated() {
		populated = 1
	}
	return chunkRecord{Level: levelRecord{
		XPos:             int32(c.Coords.X),
		ZPos:             int32(c.Coords.Z),
		TerrainPopulated: populated,
		LastUpdate:       snap.LastUpdate(),
		Blocks:           a.Blocks,
		Data:             a.Metadata,
		BlockLight:       a.BlockLight,
		SkyLight:         a.SkyLight,
		HeightMap:        a.HeightMap,
		Entities:         fromRecords(snap.Entities()),
		TileEntities:     fromRecords(snap.TileEntities()),
	}}
}

func fromRecords(in []chunk.Record) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, r := range in {
		out[i] = map[string]any(r)
	}
	return out
}

func toRecords(in []map[string]any) []chunk.Record {
	out := make([]chunk.Record, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, chunk.Record(r))
		}
	}
	return out
}

// writeRecord пишет несжатый NBT чанка
func writeRecord(w io.Writer, c *chunk.Chunk) error {
	if err := nbt.NewEncoder(w).Encode(toRecord(c), ""); err != nil {
		return fmt.Errorf("кодирование NBT чанка %d,%d: %w", c.Coords.X, c.Coords.Z, err)
	}
	return nil
}

// readRecord читает несжатый NBT чанка. Ошибки формата возвращаются как
// *LoadError; свет и флаги берутся из записи без пересчёта.
func readRecord(r io.Reader, coords vec.Vec2, source string) (*chunk.Chunk, error) {
	var rec chunkRecord
	if _, err := nbt.NewDecoder(r).Decode(&rec); err != nil {
		return nil, &LoadError{Coords: coords, Source: source, Err: err}
	}
	lv := rec.Level
	if int(lv.XPos) != coords.X || int(lv.ZPos) != coords.Z {
		return nil, &LoadError{Coords: coords, Source: source,
			Err: fmt.Errorf("в файле чанк %d,%d", lv.XPos, lv.ZPos)}
	}

	c, err := chunk.FromArrays(coords, chunk.Arrays{
		Blocks:     lv.Blocks,
		Metadata:   chunk.NibbleArray(lv.Data),
		BlockLight: chunk.NibbleArray(lv.BlockLight),
		SkyLight:   chunk.NibbleArray(lv.SkyLight),
		HeightMap:  lv.HeightMap,
	})
	if err != nil {
		return nil, &LoadError{Coords: coords, Source: source, Err: err}
	}
	c.SetEntities(toRecords(lv.Entities))
	c.SetTileEntities(toRecords(lv.TileEntities))
	c.RestoreFlags(lv.TerrainPopulated != 0, lv.LastUpdate)
	c.MarkSaved()
	return c, nil
}
