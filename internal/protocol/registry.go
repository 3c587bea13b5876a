package protocol

import (
	"fmt"
	"sort"
)

// Registry неизменяемая таблица поддерживаемых версий.
// Строится один раз при старте и передаётся компонентам явно.
type Registry struct {
	versions  []Version // отсортированы по SortOrder
	byWire    map[int32]int
	caps      [capabilityCount]Version
	sets      []CapabilitySet // индекс совпадает с versions
	canonical Version
	packets   map[packetKey]PacketTable
}

type packetKey struct {
	sort int
	dir  Direction
}

// NewRegistry проверяет таблицу и строит реестр.
// Повтор номера протокола или порядкового номера считается ошибкой программиста.
func NewRegistry(versions []Version, intro map[Capability]Version, canonicalWire int32) (*Registry, error) {
	r := &Registry{
		versions: make([]Version, len(versions)),
		byWire:   make(map[int32]int, len(versions)),
		packets:  make(map[packetKey]PacketTable),
	}
	copy(r.versions, versions)
	sort.Slice(r.versions, func(i, j int) bool { return r.versions[i].SortOrder < r.versions[j].SortOrder })

	seenSort := make(map[int]string, len(versions))
	for i, v := range r.versions {
		if prev, ok := seenSort[v.SortOrder]; ok {
			return nil, fmt.Errorf("версии %s и %s имеют одинаковый порядок %d", prev, v.Name, v.SortOrder)
		}
		seenSort[v.SortOrder] = v.Name
		if j, ok := r.byWire[v.Wire]; ok {
			return nil, fmt.Errorf("версии %s и %s имеют одинаковый номер протокола %d", r.versions[j].Name, v.Name, v.Wire)
		}
		r.byWire[v.Wire] = i
	}

	for c := Capability(0); c < capabilityCount; c++ {
		v, ok := intro[c]
		if !ok {
			return nil, fmt.Errorf("для возможности %s не задана версия появления", c)
		}
		if _, known := r.byWire[v.Wire]; !known {
			return nil, fmt.Errorf("возможность %s ссылается на неизвестную версию %s", c, v.Name)
		}
		r.caps[c] = v
	}

	r.sets = make([]CapabilitySet, len(r.versions))
	for i, v := range r.versions {
		var set CapabilitySet
		for c := Capability(0); c < capabilityCount; c++ {
			if IsAtLeast(v, r.caps[c]) {
				set = set.with(c)
			}
		}
		r.sets[i] = set
	}

	idx, ok := r.byWire[canonicalWire]
	if !ok {
		return nil, fmt.Errorf("каноническая версия с номером %d не зарегистрирована", canonicalWire)
	}
	r.canonical = r.versions[idx]

	for _, v := range r.versions {
		for _, dir := range []Direction{Clientbound, Serverbound} {
			if table, ok := defaultPackets(v, dir); ok {
				r.packets[packetKey{v.SortOrder, dir}] = table
			}
		}
	}
	return r, nil
}

// MustDefaultRegistry строит стандартный реестр сервера и паникует при ошибке в таблице
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(SupportedVersions(), Introductions(), Beta1_7_3.Wire)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup ищет версию по номеру протокола. Неизвестный номер - не найдено,
// версия по умолчанию не подставляется.
func (r *Registry) Lookup(wire int32) (Version, bool) {
	i, ok := r.byWire[wire]
	if !ok {
		return Version{}, false
	}
	return r.versions[i], true
}

// LookupFamily ищет версию по номеру протокола с проверкой семейства рукопожатия
func (r *Registry) LookupFamily(family Family, wire int32) (Version, bool) {
	v, ok := r.Lookup(wire)
	if !ok || v.Family != family {
		return Version{}, false
	}
	return v, true
}

// CapabilitiesAvailable возвращает набор возможностей версии
func (r *Registry) CapabilitiesAvailable(v Version) CapabilitySet {
	if i, ok := r.byWire[v.Wire]; ok && r.versions[i].SortOrder == v.SortOrder {
		return r.sets[i]
	}
	var set CapabilitySet
	for c := Capability(0); c < capabilityCount; c++ {
		if IsAtLeast(v, r.caps[c]) {
			set = set.with(c)
		}
	}
	return set
}

// Has проверяет одну возможность для версии
func (r *Registry) Has(v Version, c Capability) bool {
	return IsAtLeast(v, r.caps[c])
}

// IntroducedIn возвращает версию, в которой появилась возможность
func (r *Registry) IntroducedIn(c Capability) Version {
	return r.caps[c]
}

// All возвращает все версии в хронологическом порядке
func (r *Registry) All() []Version {
	out := make([]Version, len(r.versions))
	copy(out, r.versions)
	return out
}

// Canonical возвращает версию, чьё пространство идентификаторов блоков является каноническим
func (r *Registry) Canonical() Version {
	return r.canonical
}

// Packets возвращает таблицу пакетов для пары (версия, направление)
func (r *Registry) Packets(v Version, dir Direction) PacketTable {
	return r.packets[packetKey{v.SortOrder, dir}]
}

// Supports проверяет, зарегистрирован ли пакет для пары (версия, направление)
func (r *Registry) Supports(v Version, dir Direction, p Packet) bool {
	_, ok := r.Packets(v, dir).ID(p)
	return ok
}
