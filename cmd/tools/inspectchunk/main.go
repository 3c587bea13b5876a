// inspectchunk печатает содержимое чанка из мира или генератора: карту
// высот, число блоков по типам и размер чанка в формате каждой версии.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/annel0/polycraft/internal/codec"
	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/storage"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
	"github.com/annel0/polycraft/internal/world/gen"
)

func main() {
	var (
		worldDir = flag.String("world", "", "каталог мира; пусто - только генератор")
		backend  = flag.String("storage", "alpha", "хранилище: alpha, region, badger")
		seed     = flag.Int64("seed", 1234, "сид генератора")
		x        = flag.Int("x", 0, "координата чанка X")
		z        = flag.Int("z", 0, "координата чанка Z")
		palette  = flag.String("palette", "", "палитра Bedrock для runtime id")
	)
	flag.Parse()

	coords := vec.Vec2{X: *x, Z: *z}
	c, origin, err := fetch(*worldDir, *backend, *seed, coords)
	if err != nil {
		log.Fatalf("❌ Чанк %d,%d: %v", coords.X, coords.Z, err)
	}
	if origin == storage.OriginGenerated {
		c.GenerateLight(nil)
	}

	fmt.Printf("Чанк %d,%d (%s)\n\n", coords.X, coords.Z, origin)
	printHeightMap(os.Stdout, c)
	printStats(os.Stdout, c)

	quiet := logging.NewWriterLogger("inspect", io.Discard, logging.ERROR)
	tc := translate.NewContext(translate.Options{ForeignPalettePath: *palette, Logger: quiet})
	printSizes(os.Stdout, c, tc)
}

func fetch(dir, backend string, seed int64, coords vec.Vec2) (*chunk.Chunk, storage.Origin, error) {
	if dir == "" {
		return gen.New(seed).Generate(coords), storage.OriginGenerated, nil
	}
	if level, err := storage.ReadLevel(dir); err == nil {
		seed = level.RandomSeed
	}
	store, err := storage.Open(storage.Backend(backend), dir)
	if err != nil {
		return nil, storage.OriginStore, err
	}
	defer store.Close()
	return storage.NewMultiSource(gen.New(seed), store).Fetch(coords)
}

func printHeightMap(w io.Writer, c *chunk.Chunk) {
	fmt.Fprintln(w, "Карта высот (z вниз, x вправо):")
	for z := 0; z < chunk.Depth; z++ {
		var row strings.Builder
		for x := 0; x < chunk.Width; x++ {
			fmt.Fprintf(&row, "%4d", c.Height(x, z))
		}
		fmt.Fprintln(w, row.String())
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, c *chunk.Chunk) {
	var counts [256]int
	for _, id := range c.Arrays().Blocks {
		counts[id]++
	}
	ids := make([]int, 0, 32)
	for id, n := range counts {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return counts[ids[i]] > counts[ids[j]] })

	fmt.Fprintln(w, "Блоки:")
	for _, id := range ids {
		fmt.Fprintf(w, "  %3d %-20s %6d\n", id, block.Name(block.BlockID(id)), counts[id])
	}
	fmt.Fprintf(w, "  записей сущностей: %d, тайл-сущностей: %d\n\n", len(c.Entities()), len(c.TileEntities()))
}

func printSizes(w io.Writer, c *chunk.Chunk, tc *translate.Context) {
	fmt.Fprintln(w, "Размер по версиям:")
	for _, v := range protocol.MustDefaultRegistry().All() {
		cd, ok := codec.ForVersion(v)
		if !ok {
			fmt.Fprintf(w, "  %-26s только изменения блоков\n", v)
			continue
		}
		data, err := cd.Encode(c, tc.ForVersion(v))
		if err != nil {
			fmt.Fprintf(w, "  %-26s ошибка: %v\n", v, err)
			continue
		}
		fmt.Fprintf(w, "  %-26s %-9s %7d байт\n", v, cd.Format(), len(data))
	}
}
