package translate

import (
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/world/block"
)

// Domain размер канонического пространства legacy id
const Domain = 256

// Канонические значения по умолчанию
const (
	CanonicalAir   = 0
	GenericSolid   = 1 // камень в любом пространстве, где он есть
	FlattenedStone = 1
)

// Mapper переводит канонические legacy id в пространство клиента и обратно.
// Все методы чистые и работают за O(1).
type Mapper interface {
	Space() protocol.BlockSpace
	// Map переводит канонический id; id вне домена дают Fallback
	Map(id int) uint32
	// Legacy переводит id клиента обратно в канонический, неизвестные дают воздух
	Legacy(native uint32) byte
	// Fallback значение для id, отсутствующих в таблице
	Fallback() uint32
}

// tableMapper статическая таблица из ресурса: межэпоховые legacy палитры и flattening
type tableMapper struct {
	space    protocol.BlockSpace
	name     string
	forward  [Domain]uint32
	reverse  map[uint32]byte
	fallback uint32
}

func newTableMapper(space protocol.BlockSpace, t *numericTable) *tableMapper {
	m := &tableMapper{
		space:    space,
		name:     t.Name,
		fallback: t.Fallback,
		reverse:  make(map[uint32]byte, len(t.Entries)),
	}
	for i := range m.forward {
		m.forward[i] = t.Fallback
	}
	for id := 0; id < Domain; id++ {
		native, ok := t.Entries[id]
		if !ok {
			continue
		}
		m.forward[id] = native
		// Несколько канонических id могут сходиться в один: обратно ведёт наименьший
		if _, seen := m.reverse[native]; !seen {
			m.reverse[native] = byte(id)
		}
	}
	return m
}

// airOnlyMapper деградированная таблица при отсутствии ресурса
func airOnlyMapper(space protocol.BlockSpace, name string) *tableMapper {
	return newTableMapper(space, &numericTable{Name: name, Fallback: CanonicalAir})
}

func (m *tableMapper) Space() protocol.BlockSpace { return m.space }
func (m *tableMapper) Fallback() uint32           { return m.fallback }

func (m *tableMapper) Map(id int) uint32 {
	if id < 0 || id >= Domain {
		return m.fallback
	}
	return m.forward[id]
}

func (m *tableMapper) Legacy(native uint32) byte {
	if id, ok := m.reverse[native]; ok {
		return id
	}
	return CanonicalAir
}

// eraMapper каноническое пространство, урезанное до числа блоков эры клиента.
// Блоки новее эры сводятся к камню, если они сплошные, иначе к воздуху.
type eraMapper struct {
	types int
}

func (m eraMapper) Space() protocol.BlockSpace { return protocol.SpaceLegacy }
func (m eraMapper) Fallback() uint32           { return CanonicalAir }

func (m eraMapper) Map(id int) uint32 {
	switch {
	case id < 0 || id >= Domain:
		return CanonicalAir
	case id < m.types:
		return uint32(id)
	case block.IsOpaque(byte(id)):
		return GenericSolid
	default:
		return CanonicalAir
	}
}

func (m eraMapper) Legacy(native uint32) byte {
	if native >= uint32(m.types) {
		return CanonicalAir
	}
	return byte(native)
}
