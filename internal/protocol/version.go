// Package protocol описывает поддерживаемые версии клиентов, их возможности
// и таблицы пакетов для каждой пары (версия, направление).
package protocol

import "fmt"

// Family определяет семейство формата передачи данных
type Family int

const (
	// FamilyFixedString - строки фиксированной длины 64 байта (прототип, Classic)
	FamilyFixedString Family = iota
	// FamilyUTF16 - строки с префиксом длины в UTF-16 (Alpha/Beta SMP)
	FamilyUTF16
	// FamilyVarIntUTF8 - VarInt префиксы и UTF-8 строки (Java после flattening)
	FamilyVarIntUTF8
	// FamilyBedrock - чужой движок с bit-packed сабчанками
	FamilyBedrock
)

func (f Family) String() string {
	switch f {
	case FamilyFixedString:
		return "fixed-string"
	case FamilyUTF16:
		return "utf16"
	case FamilyVarIntUTF8:
		return "varint-utf8"
	case FamilyBedrock:
		return "bedrock"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// BlockSpace определяет пространство идентификаторов блоков, на котором говорит клиент
type BlockSpace int

const (
	SpacePrototype BlockSpace = iota // палитра из 3 блоков
	SpaceClassic                     // 50 блоков Classic
	SpaceLegacy                      // каноническое пространство Alpha/Beta
	SpaceFlattened113                // глобальные state id эпохи 1.13
	SpaceFlattened116                // глобальные state id эпохи 1.16
	SpaceRuntime                     // runtime id Bedrock
)

func (s BlockSpace) String() string {
	switch s {
	case SpacePrototype:
		return "prototype"
	case SpaceClassic:
		return "classic"
	case SpaceLegacy:
		return "legacy"
	case SpaceFlattened113:
		return "flattened-1.13"
	case SpaceFlattened116:
		return "flattened-1.16"
	case SpaceRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// ChunkFormat определяет кодек, которым чанки отправляются клиенту
type ChunkFormat int

const (
	ChunkNone ChunkFormat = iota // чанки не отправляются, только изменения блоков
	ChunkFlat
	ChunkNibble
	ChunkPaletted
)

func (c ChunkFormat) String() string {
	switch c {
	case ChunkFlat:
		return "flat"
	case ChunkNibble:
		return "nibble"
	case ChunkPaletted:
		return "paletted"
	default:
		return "none"
	}
}

// Movement описывает, как версия кодирует относительные перемещения.
// Bits == 0 означает дельты с плавающей точкой без ограничения диапазона.
type Movement struct {
	UnitsPerBlock int
	Bits          int
}

// Fits проверяет, можно ли выразить смещение в блоках без потерь диапазона
func (m Movement) Fits(delta float64) bool {
	if m.Bits == 0 {
		return true
	}
	limit := float64(int64(1) << (m.Bits - 1))
	units := delta * float64(m.UnitsPerBlock)
	return units >= -limit && units <= limit-1
}

// Version описывает одну поддерживаемую версию клиента. Значения неизменяемы
// после построения реестра.
type Version struct {
	Name       string
	Wire       int32
	SortOrder  int
	Family     Family
	BlockTypes int
	Space      BlockSpace
	Chunks     ChunkFormat
	Movement   Movement

	// Вертикальные границы измерения клиента (для paletted формата)
	MinY, MaxY int
}

func (v Version) String() string {
	return fmt.Sprintf("%s (wire %d)", v.Name, v.Wire)
}

// IsAtLeast сравнивает версии только по хронологическому порядку.
// Номер протокола для сравнения непригоден: счётчик сбрасывался.
func IsAtLeast(a, b Version) bool {
	return a.SortOrder >= b.SortOrder
}

// FamilyOf возвращает семейство формата версии
func FamilyOf(v Version) Family {
	return v.Family
}

var (
	Prototype = Version{Name: "rd-132211", Wire: 0, SortOrder: 0, Family: FamilyFixedString,
		BlockTypes: 3, Space: SpacePrototype, Chunks: ChunkFlat, MinY: 0, MaxY: 63}
	Classic = Version{Name: "c0.30", Wire: 7, SortOrder: 1, Family: FamilyFixedString,
		BlockTypes: 50, Space: SpaceClassic, Chunks: ChunkFlat,
		Movement: Movement{UnitsPerBlock: 32, Bits: 8}, MinY: 0, MaxY: 63}
	Alpha1_0_15 = Version{Name: "a1.0.15", Wire: 1, SortOrder: 2, Family: FamilyUTF16,
		BlockTypes: 86, Space: SpaceLegacy, Chunks: ChunkNibble,
		Movement: Movement{UnitsPerBlock: 32, Bits: 8}, MinY: 0, MaxY: 127}
	Alpha1_2_6 = Version{Name: "a1.2.6", Wire: 6, SortOrder: 3, Family: FamilyUTF16,
		BlockTypes: 92, Space: SpaceLegacy, Chunks: ChunkNibble,
		Movement: Movement{UnitsPerBlock: 32, Bits: 8}, MinY: 0, MaxY: 127}
	Beta1_5_01 = Version{Name: "b1.5_01", Wire: 11, SortOrder: 4, Family: FamilyUTF16,
		BlockTypes: 94, Space: SpaceLegacy, Chunks: ChunkNibble,
		Movement: Movement{UnitsPerBlock: 32, Bits: 8}, MinY: 0, MaxY: 127}
	Beta1_7_3 = Version{Name: "b1.7.3", Wire: 14, SortOrder: 5, Family: FamilyUTF16,
		BlockTypes: 97, Space: SpaceLegacy, Chunks: ChunkNibble,
		Movement: Movement{UnitsPerBlock: 32, Bits: 8}, MinY: 0, MaxY: 127}
	Java1_13_2 = Version{Name: "1.13.2", Wire: 404, SortOrder: 6, Family: FamilyVarIntUTF8,
		BlockTypes: 256, Space: SpaceFlattened113, Chunks: ChunkNone,
		Movement: Movement{UnitsPerBlock: 4096, Bits: 16}, MinY: 0, MaxY: 255}
	Java1_16_5 = Version{Name: "1.16.5", Wire: 754, SortOrder: 7, Family: FamilyVarIntUTF8,
		BlockTypes: 256, Space: SpaceFlattened116, Chunks: ChunkNone,
		Movement: Movement{UnitsPerBlock: 4096, Bits: 16}, MinY: 0, MaxY: 255}
	Bedrock1_16_100 = Version{Name: "bedrock 1.16.100", Wire: 419, SortOrder: 8, Family: FamilyBedrock,
		BlockTypes: 256, Space: SpaceRuntime, Chunks: ChunkPaletted, MinY: 0, MaxY: 255}
	Bedrock1_18_0 = Version{Name: "bedrock 1.18.0", Wire: 475, SortOrder: 9, Family: FamilyBedrock,
		BlockTypes: 256, Space: SpaceRuntime, Chunks: ChunkPaletted, MinY: -64, MaxY: 319}
)

// SupportedVersions возвращает стандартный набор версий сервера
func SupportedVersions() []Version {
	return []Version{
		Prototype, Classic,
		Alpha1_0_15, Alpha1_2_6, Beta1_5_01, Beta1_7_3,
		Java1_13_2, Java1_16_5,
		Bedrock1_16_100, Bedrock1_18_0,
	}
}
