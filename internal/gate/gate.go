// Package gate фильтрует канонические исходящие события под версию
// конкретного соединения: отбрасывает то, что клиент не поймёт, и
// переписывает идентификаторы блоков в его пространство.
package gate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/translate"
)

// Decision результат фильтрации одного события
type Decision uint8

const (
	Drop Decision = iota
	Pass
	Rewrite
)

func (d Decision) String() string {
	switch d {
	case Drop:
		return "drop"
	case Pass:
		return "pass"
	case Rewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("decision(%d)", uint8(d))
	}
}

// Gate фильтр одного соединения, вызывается только из горутины отправки
// сессии.
type Gate struct {
	registry *protocol.Registry
	version  protocol.Version
	mapper   translate.Mapper
	caps     protocol.CapabilitySet
	counter  *prometheus.CounterVec
	log      *logging.Logger

	// Сущности с известной абсолютной позицией. Bedrock передаёт смещение
	// абсолютными координатами, поэтому без телепорта его не построить.
	placed map[int32]struct{}
}

// New создаёт фильтр для версии клиента. m может быть nil.
func New(r *protocol.Registry, v protocol.Version, tc *translate.Context, m *metrics.Metrics) *Gate {
	g := &Gate{
		registry: r,
		version:  v,
		mapper:   tc.ForVersion(v),
		caps:     r.CapabilitiesAvailable(v),
		log:      logging.GetGateLogger(),
	}
	if m != nil {
		g.counter = m.GateDecisions
	}
	if v.Family == protocol.FamilyBedrock {
		g.placed = make(map[int32]struct{})
	}
	return g
}

// Version версия соединения
func (g *Gate) Version() protocol.Version { return g.version }

// Mapper таблица идентификаторов соединения (нужна кодекам чанков)
func (g *Gate) Mapper() translate.Mapper { return g.mapper }

// Filter решает судьбу события. При Drop возвращённое событие равно nil.
// Паникует на варианте, неизвестном фильтру.
func (g *Gate) Filter(ev events.Outbound) (events.Outbound, Decision) {
	out, d := g.decide(ev)
	if g.counter != nil {
		g.counter.WithLabelValues(g.version.Name, ev.Packet().String(), d.String()).Inc()
	}
	if d == Drop {
		g.log.Trace("🚫 %s: отброшено %s", g.version.Name, events.Describe(ev))
		return nil, Drop
	}
	return out, d
}

func (g *Gate) decide(ev events.Outbound) (events.Outbound, Decision) {
	if ev == nil {
		panic("gate: nil событие")
	}
	supported := g.registry.Supports(g.version, protocol.Clientbound, ev.Packet())

	switch e := ev.(type) {
	case events.BlockChange:
		if !supported {
			return nil, Drop
		}
		e.Block = g.mapper.Map(int(e.Block))
		if !g.caps.Has(protocol.CapBlockMetadata) || g.caps.Has(protocol.CapFlattenedBlocks) {
			e.Metadata = 0
		}
		return e, Rewrite

	case events.SetSlot:
		if !supported {
			return nil, Drop
		}
		// Таблиц предметов для state id и runtime id нет: блочное
		// отображение дало бы клиенту чужой предмет или воздух
		switch g.version.Space {
		case protocol.SpaceFlattened113, protocol.SpaceFlattened116, protocol.SpaceRuntime:
			return nil, Drop
		}
		if e.Item < translate.Domain {
			e.Item = g.mapper.Map(int(e.Item))
			return e, Rewrite
		}
		return e, Pass

	case events.RelativeMove:
		if !supported {
			return nil, Drop
		}
		mv := g.version.Movement
		if !mv.Fits(e.Delta.X) || !mv.Fits(e.Delta.Y) || !mv.Fits(e.Delta.Z) {
			return nil, Drop
		}
		if g.placed != nil {
			if _, ok := g.placed[e.EntityID]; !ok {
				return nil, Drop
			}
		}
		return e, Pass

	case events.Teleport:
		if !supported {
			return nil, Drop
		}
		if g.placed != nil {
			g.placed[e.EntityID] = struct{}{}
		}
		return e, Pass

	case events.ChunkData:
		// Блоки чанка переводит кодек при сериализации. Classic получает
		// чанки в составе потока уровня.
		if !supported {
			supported = g.registry.Supports(g.version, protocol.Clientbound, protocol.PacketLevelData)
		}
		if !supported || e.Chunk == nil {
			return nil, Drop
		}
		return e, Pass

	case events.Chat, events.TimeUpdate, events.Weather, events.Disconnect:
		if !supported {
			return nil, Drop
		}
		return e, Pass

	default:
		panic(fmt.Sprintf("gate: неизвестный вариант события %T", ev))
	}
}
