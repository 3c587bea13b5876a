package translate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/annel0/polycraft/internal/protocol"
)

// PaletteEntry одна запись канонической палитры Bedrock
type PaletteEntry struct {
	Name    string         `nbt:"name"`
	States  map[string]any `nbt:"states"`
	Version int32          `nbt:"version"`
}

// ReadPalette читает поток NBT-компаундов в сетевом little-endian формате
func ReadPalette(r io.Reader) ([]PaletteEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("чтение палитры: %w", err)
	}

	buf := bytes.NewReader(data)
	dec := nbt.NewDecoderWithEncoding(buf, nbt.NetworkLittleEndian)
	var palette []PaletteEntry
	for buf.Len() > 0 {
		var e PaletteEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("запись палитры %d: %w", len(palette), err)
		}
		palette = append(palette, e)
	}
	return palette, nil
}

// WritePalette записывает палитру в том же формате (утилиты и тесты)
func WritePalette(w io.Writer, palette []PaletteEntry) error {
	enc := nbt.NewEncoderWithEncoding(w, nbt.NetworkLittleEndian)
	for i, e := range palette {
		if e.States == nil {
			e.States = map[string]any{}
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("запись палитры %d: %w", i, err)
		}
	}
	return nil
}

// RuntimeTable мост канонических id в runtime id Bedrock.
// Строится один раз при старте.
type RuntimeTable struct {
	forward     [Domain]uint32
	reverse     []byte
	air         uint32
	paletteSize int
	resolved    int
}

// BuildRuntimeTable разрешает канонические id через имена и палитру.
// Первое вхождение имени в палитре считается состоянием по умолчанию.
func BuildRuntimeTable(palette []PaletteEntry, names map[int]string) *RuntimeTable {
	first := make(map[string]uint32, len(palette))
	for i, e := range palette {
		if _, ok := first[e.Name]; !ok {
			first[e.Name] = uint32(i)
		}
	}

	t := &RuntimeTable{
		reverse:     make([]byte, len(palette)),
		air:         first["minecraft:air"],
		paletteSize: len(palette),
	}
	for id := 0; id < Domain; id++ {
		t.forward[id] = t.air
		name, ok := names[id]
		if !ok {
			continue
		}
		rid, ok := first[name]
		if !ok {
			continue
		}
		t.forward[id] = rid
		t.resolved++
		if id != CanonicalAir && t.reverse[rid] == CanonicalAir {
			t.reverse[rid] = byte(id)
		}
	}
	return t
}

// airOnlyRuntime деградированный мост: всё переводится в воздух
func airOnlyRuntime() *RuntimeTable {
	return BuildRuntimeTable(nil, nil)
}

func (t *RuntimeTable) Space() protocol.BlockSpace { return protocol.SpaceRuntime }
func (t *RuntimeTable) Fallback() uint32           { return t.air }

func (t *RuntimeTable) Map(id int) uint32 {
	if id < 0 || id >= Domain {
		return t.air
	}
	return t.forward[id]
}

func (t *RuntimeTable) Legacy(native uint32) byte {
	if int(native) >= len(t.reverse) {
		return CanonicalAir
	}
	return t.reverse[native]
}

// Resolved возвращает число канонических id, найденных в палитре
func (t *RuntimeTable) Resolved() int {
	return t.resolved
}

// PaletteSize размер загруженной палитры
func (t *RuntimeTable) PaletteSize() int {
	return t.paletteSize
}
