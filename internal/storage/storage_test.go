package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

func testChunk(coords vec.Vec2) *chunk.Chunk {
	c := chunk.New(coords)
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			for y := 0; y < 60; y++ {
				c.SetBlock(x, y, z, block.StoneBlockID)
			}
			c.SetBlock(x, 60, z, block.GrassBlockID)
		}
	}
	c.SetBlockAndMetadata(4, 61, 4, block.WoolBlockID, 14)
	c.SetBlock(8, 61, 8, block.TorchBlockID)
	c.GenerateLight(nil)
	c.SetEntities([]chunk.Record{{"id": "Pig", "Health": int32(10)}})
	c.SetTileEntities([]chunk.Record{{"id": "Chest", "x": int32(coords.X*16 + 1), "y": int32(61), "z": int32(coords.Z*16 + 1)}})
	c.RestoreFlags(true, 4242)
	return c
}

func assertSameChunk(t *testing.T, want, got *chunk.Chunk) {
	t.Helper()
	assert.Equal(t, want.Coords, got.Coords)
	assert.Equal(t, want.Arrays(), got.Arrays())
	assert.Equal(t, want.TerrainPopulated(), got.TerrainPopulated())
	assert.Equal(t, want.LastUpdate(), got.LastUpdate())
	require.Len(t, got.Entities(), 1)
	assert.Equal(t, "Pig", got.Entities()[0].ID())
	assert.Equal(t, int32(10), got.Entities()[0]["Health"])
	require.Len(t, got.TileEntities(), 1)
	assert.Equal(t, "Chest", got.TileEntities()[0].ID())
	assert.False(t, got.Dirty(), "Загруженный чанк не помечается изменённым")
}

func TestAlphaStore_ChunkPath(t *testing.T) {
	root := t.TempDir()
	s, err := NewAlphaStore(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "0", "0", "c.0.0.dat"), s.ChunkPath(vec.Vec2{}))
	assert.Equal(t, filepath.Join(root, "1r", "10", "c.-1.2s.dat"), s.ChunkPath(vec.Vec2{X: -1, Z: 100}))
}

func TestStores_RoundTrip(t *testing.T) {
	open := map[string]func(dir string) (ChunkStore, error){
		"alpha":  func(dir string) (ChunkStore, error) { return NewAlphaStore(dir) },
		"region": func(dir string) (ChunkStore, error) { return NewRegionStore(dir) },
		"badger": func(dir string) (ChunkStore, error) { return NewBadgerStore(dir) },
	}

	for name, openFn := range open {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			s, err := openFn(dir)
			require.NoError(t, err)

			coords := []vec.Vec2{{X: 0, Z: 0}, {X: 5, Z: -3}, {X: -33, Z: 40}}
			for _, cc := range coords {
				require.NoError(t, s.SaveChunk(testChunk(cc)))
			}

			_, err = s.LoadChunk(vec.Vec2{X: 1000, Z: 1000})
			assert.ErrorIs(t, err, ErrChunkNotFound)

			// Повторное открытие читает то, что записано на диск
			require.NoError(t, s.Close())
			s, err = openFn(dir)
			require.NoError(t, err)
			defer s.Close()

			for _, cc := range coords {
				got, err := s.LoadChunk(cc)
				require.NoError(t, err, "%v", cc)
				assertSameChunk(t, testChunk(cc), got)
			}
		})
	}
}

func TestAlphaStore_CorruptFileIsLoadError(t *testing.T) {
	s, err := NewAlphaStore(t.TempDir())
	require.NoError(t, err)

	coords := vec.Vec2{X: 2, Z: 3}
	path := s.ChunkPath(coords)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("это не gzip"), 0644))

	_, err = s.LoadChunk(coords)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, coords, le.Coords)
	assert.True(t, IsMissing(err))
}

func TestAlphaStore_WrongCoordsIsLoadError(t *testing.T) {
	s, err := NewAlphaStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveChunk(testChunk(vec.Vec2{X: 1, Z: 1})))
	require.NoError(t, os.MkdirAll(filepath.Dir(s.ChunkPath(vec.Vec2{X: 2, Z: 2})), 0755))
	require.NoError(t, os.Rename(s.ChunkPath(vec.Vec2{X: 1, Z: 1}), s.ChunkPath(vec.Vec2{X: 2, Z: 2})))

	_, err = s.LoadChunk(vec.Vec2{X: 2, Z: 2})
	var le *LoadError
	assert.True(t, errors.As(err, &le))
}

func TestRegionStore_FileNaming(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRegionStore(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, "region", "r.0.0.mcr"), s.RegionPath(vec.Vec2{X: 31, Z: 0}))
	assert.Equal(t, filepath.Join(dir, "region", "r.1.-1.mcr"), s.RegionPath(vec.Vec2{X: 32, Z: -1}))

	require.NoError(t, s.SaveChunk(testChunk(vec.Vec2{X: -1, Z: -1})))
	_, err = os.Stat(filepath.Join(dir, "region", "r.-1.-1.mcr"))
	assert.NoError(t, err)
}

func TestRegionStore_MissingRegionNotCreatedOnLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRegionStore(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadChunk(vec.Vec2{X: 100, Z: 100})
	assert.ErrorIs(t, err, ErrChunkNotFound)

	entries, err := os.ReadDir(filepath.Join(dir, "region"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := newInMemoryBadger()
	require.NoError(t, err)
	defer s.Close()

	c := testChunk(vec.Vec2{X: 7, Z: 7})
	require.NoError(t, s.SaveChunk(c))
	got, err := s.LoadChunk(c.Coords)
	require.NoError(t, err)
	assertSameChunk(t, c, got)

	require.NoError(t, s.Close())
	_, err = s.LoadChunk(c.Coords)
	assert.Error(t, err)
}

func TestLevelAndSession(t *testing.T) {
	dir := t.TempDir()

	info := &LevelInfo{RandomSeed: -42, SpawnX: 8, SpawnY: 64, SpawnZ: -8, Time: 12000, LevelName: "world", Version: RegionLevelVersion}
	require.NoError(t, WriteLevel(dir, info))

	got, err := ReadLevel(dir)
	require.NoError(t, err)
	assert.Equal(t, *info, *got)
	assert.NotZero(t, got.LastPlayed)

	_, err = ReadLevel(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)

	stamp, err := AcquireSession(dir)
	require.NoError(t, err)
	assert.NoError(t, CheckSession(dir, stamp))

	data, err := os.ReadFile(filepath.Join(dir, "session.lock"))
	require.NoError(t, err)
	assert.Len(t, data, 8)

	assert.ErrorIs(t, CheckSession(dir, stamp+1), ErrSessionLost)
}

type flatGenerator struct{ calls int }

func (g *flatGenerator) Generate(coords vec.Vec2) *chunk.Chunk {
	g.calls++
	c := chunk.New(coords)
	c.SetBlock(0, 0, 0, block.BedrockBlockID)
	return c
}

func TestMultiSource_FallsBackToGenerator(t *testing.T) {
	primary, err := NewAlphaStore(t.TempDir())
	require.NoError(t, err)
	gen := &flatGenerator{}
	ms := NewMultiSource(gen, primary)

	stored := testChunk(vec.Vec2{X: 1, Z: 1})
	require.NoError(t, ms.SaveChunk(stored))

	c, origin, err := ms.Fetch(stored.Coords)
	require.NoError(t, err)
	assert.Equal(t, OriginStore, origin)
	assertSameChunk(t, stored, c)

	c, origin, err = ms.Fetch(vec.Vec2{X: 9, Z: 9})
	require.NoError(t, err)
	assert.Equal(t, OriginGenerated, origin)
	assert.Equal(t, block.BedrockBlockID, c.Block(0, 0, 0))

	// Повреждённый файл считается отсутствующим
	broken := vec.Vec2{X: 4, Z: 4}
	path := primary.ChunkPath(broken)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte{0x1f, 0x8b, 0, 0}, 0644))
	_, origin, err = ms.Fetch(broken)
	require.NoError(t, err)
	assert.Equal(t, OriginGenerated, origin)
	assert.Equal(t, 2, gen.calls)
}

func TestMultiSource_NoGenerator(t *testing.T) {
	primary, err := NewAlphaStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewMultiSource(nil, primary).LoadChunk(vec.Vec2{})
	assert.ErrorIs(t, err, ErrChunkNotFound)
}

func TestOpen_SelectsBackend(t *testing.T) {
	s, err := Open(BackendRegion, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &RegionStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("mongo", t.TempDir())
	assert.Error(t, err)
}
