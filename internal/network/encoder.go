package network

import (
	"fmt"
	"io"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/annel0/polycraft/internal/codec"
	"github.com/annel0/polycraft/internal/gate"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// encoder переводит событие, уже прошедшее фильтр, в байты семейства.
// Вызывается только из горутины записи сессии.
type encoder interface {
	encode(w io.Writer, ev events.Outbound) error
}

// newEncoder выбирает кодировщик по семейству версии фильтра
func newEncoder(r *protocol.Registry, g *gate.Gate, m *metrics.Metrics) (encoder, error) {
	v := g.Version()
	table := r.Packets(v, protocol.Clientbound)

	var chunks *chunkEncoder
	if c, ok := codec.ForVersion(v); ok {
		chunks = &chunkEncoder{codec: c, gate: g, metrics: m}
	}

	switch v.Family {
	case protocol.FamilyFixedString:
		return &classicEncoder{version: v, table: table, chunks: chunks}, nil
	case protocol.FamilyUTF16:
		return &legacyEncoder{version: v, table: table, chunks: chunks}, nil
	case protocol.FamilyVarIntUTF8:
		return &javaEncoder{version: v, table: table}, nil
	case protocol.FamilyBedrock:
		return newBedrockEncoder(v, chunks), nil
	default:
		return nil, fmt.Errorf("нет кодировщика для семейства %s", v.Family)
	}
}

// chunkEncoder кодирует чанк кодеком версии и пишет метрики
type chunkEncoder struct {
	codec   codec.Codec
	gate    *gate.Gate
	metrics *metrics.Metrics
}

func (e *chunkEncoder) encode(c *chunk.Chunk) ([]byte, error) {
	start := time.Now()
	data, err := e.codec.Encode(c, e.gate.Mapper())
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		format := e.codec.Format().String()
		e.metrics.ChunksEncoded.WithLabelValues(format).Inc()
		e.metrics.EncodeSeconds.WithLabelValues(format).Observe(time.Since(start).Seconds())
		e.metrics.EncodedBytes.WithLabelValues(format).Observe(float64(len(data)))
	}
	return data, nil
}

func packetID(table protocol.PacketTable, v protocol.Version, p protocol.Packet) (pk.UnsignedByte, error) {
	id, ok := table.ID(p)
	if !ok {
		return 0, fmt.Errorf("пакет %s отсутствует в таблице %s", p, v)
	}
	return pk.UnsignedByte(id), nil
}

// classicEncoder пакеты прототипа и Classic. Клиент видит один уровень:
// последний отправленный чанк. Координаты переводятся в систему уровня,
// события за его пределами не отправляются.
type classicEncoder struct {
	version protocol.Version
	table   protocol.PacketTable
	chunks  *chunkEncoder

	origin vec.Vec2
}

func (e *classicEncoder) local(pos vec.Vec3) (vec.Vec3, bool) {
	l := vec.Vec3{X: pos.X - e.origin.X*chunk.Width, Y: pos.Y, Z: pos.Z - e.origin.Z*chunk.Depth}
	ok := l.X >= 0 && l.X < chunk.Width && l.Z >= 0 && l.Z < chunk.Depth && l.Y >= 0 && l.Y < chunk.Height
	return l, ok
}

func (e *classicEncoder) encode(w io.Writer, ev events.Outbound) error {
	if cd, ok := ev.(events.ChunkData); ok {
		return e.level(w, cd)
	}
	id, err := packetID(e.table, e.version, ev.Packet())
	if err != nil {
		return err
	}
	units := e.version.Movement.UnitsPerBlock

	switch ev := ev.(type) {
	case events.BlockChange:
		l, ok := e.local(ev.Pos)
		if !ok {
			return nil
		}
		return writeFields(w, id, pk.Short(l.X), pk.Short(l.Y), pk.Short(l.Z), pk.UnsignedByte(ev.Block))
	case events.Chat:
		return writeFields(w, id, pk.Byte(-1), fixedString(ev.Message))
	case events.Teleport:
		x := ev.Pos.X - float64(e.origin.X*chunk.Width)
		z := ev.Pos.Z - float64(e.origin.Z*chunk.Depth)
		return writeFields(w, id, pk.Byte(ev.EntityID),
			pk.Short(fixedPoint(x)), pk.Short(fixedPoint(ev.Pos.Y)), pk.Short(fixedPoint(z)),
			angle(ev.Yaw), angle(ev.Pitch))
	case events.RelativeMove:
		if err := writeFields(w, id, pk.Byte(ev.EntityID),
			pk.Byte(delta(ev.Delta.X, units)), pk.Byte(delta(ev.Delta.Y, units)), pk.Byte(delta(ev.Delta.Z, units)),
		); err != nil {
			return err
		}
		if ev.HasLook {
			return writeFields(w, angle(ev.Yaw), angle(ev.Pitch))
		}
		return nil
	case events.Disconnect:
		return writeFields(w, id, fixedString(ev.Reason))
	default:
		return fmt.Errorf("classic: событие %s не кодируется", events.Describe(ev))
	}
}

// level отправляет чанк как уровень: LevelInit, куски по 1024 байта
// с процентом готовности, LevelFinalize с размерами
func (e *classicEncoder) level(w io.Writer, cd events.ChunkData) error {
	if e.chunks == nil {
		return fmt.Errorf("classic: у версии %s нет формата чанков", e.version)
	}
	data, err := e.chunks.encode(cd.Chunk)
	if err != nil {
		return err
	}
	e.origin = cd.Pos

	initID, err := packetID(e.table, e.version, protocol.PacketLevelInit)
	if err != nil {
		return err
	}
	dataID, err := packetID(e.table, e.version, protocol.PacketLevelData)
	if err != nil {
		return err
	}
	finalID, err := packetID(e.table, e.version, protocol.PacketLevelFinalize)
	if err != nil {
		return err
	}

	if err := writeFields(w, initID); err != nil {
		return err
	}
	var piece [levelChunkSize]byte
	for sent := 0; sent < len(data); {
		n := copy(piece[:], data[sent:])
		clear(piece[n:])
		sent += n
		percent := sent * 100 / len(data)
		if err := writeFields(w, dataID, pk.Short(n), rawBytes(piece[:]), pk.UnsignedByte(percent)); err != nil {
			return err
		}
	}
	return writeFields(w, finalID, pk.Short(chunk.Width), pk.Short(chunk.Height), pk.Short(chunk.Depth))
}

// legacyEncoder пакеты Alpha/Beta
type legacyEncoder struct {
	version protocol.Version
	table   protocol.PacketTable
	chunks  *chunkEncoder
}

func (e *legacyEncoder) encode(w io.Writer, ev events.Outbound) error {
	if cd, ok := ev.(events.ChunkData); ok {
		return e.mapChunk(w, cd)
	}
	id, err := packetID(e.table, e.version, ev.Packet())
	if err != nil {
		return err
	}
	units := e.version.Movement.UnitsPerBlock

	switch ev := ev.(type) {
	case events.BlockChange:
		return writeFields(w, id, pk.Int(ev.Pos.X), pk.Byte(ev.Pos.Y), pk.Int(ev.Pos.Z),
			pk.UnsignedByte(ev.Block), pk.UnsignedByte(ev.Metadata))
	case events.Chat:
		return writeFields(w, id, utf16String(truncate(ev.Message, 119)))
	case events.TimeUpdate:
		return writeFields(w, id, pk.Long(ev.Time))
	case events.Teleport:
		return writeFields(w, id, pk.Int(ev.EntityID),
			pk.Int(fixedPoint(ev.Pos.X)), pk.Int(fixedPoint(ev.Pos.Y)), pk.Int(fixedPoint(ev.Pos.Z)),
			angle(ev.Yaw), angle(ev.Pitch))
	case events.RelativeMove:
		if err := writeFields(w, id, pk.Int(ev.EntityID),
			pk.Byte(delta(ev.Delta.X, units)), pk.Byte(delta(ev.Delta.Y, units)), pk.Byte(delta(ev.Delta.Z, units)),
		); err != nil {
			return err
		}
		if ev.HasLook {
			return writeFields(w, angle(ev.Yaw), angle(ev.Pitch))
		}
		return nil
	case events.Weather:
		// 1 начало дождя, 2 конец
		reason := pk.Byte(2)
		if ev.Raining {
			reason = 1
		}
		return writeFields(w, id, reason)
	case events.SetSlot:
		if ev.Count == 0 {
			return writeFields(w, id, pk.Byte(ev.Window), pk.Short(ev.Slot), pk.Short(-1))
		}
		return writeFields(w, id, pk.Byte(ev.Window), pk.Short(ev.Slot),
			pk.Short(ev.Item), pk.Byte(ev.Count), pk.Short(ev.Damage))
	case events.Disconnect:
		return writeFields(w, id, utf16String(truncate(ev.Reason, maxUTF16Len)))
	default:
		return fmt.Errorf("beta: событие %s не кодируется", events.Describe(ev))
	}
}

// mapChunk PreChunk с флагом загрузки, затем MapChunk: мировые координаты
// угла, размеры минус один и zlib-данные nibble-кодека
func (e *legacyEncoder) mapChunk(w io.Writer, cd events.ChunkData) error {
	if e.chunks == nil {
		return fmt.Errorf("beta: у версии %s нет формата чанков", e.version)
	}
	data, err := e.chunks.encode(cd.Chunk)
	if err != nil {
		return err
	}
	preID, err := packetID(e.table, e.version, protocol.PacketPreChunk)
	if err != nil {
		return err
	}
	mapID, err := packetID(e.table, e.version, protocol.PacketChunkData)
	if err != nil {
		return err
	}
	if err := writeFields(w, preID, pk.Int(cd.Pos.X), pk.Int(cd.Pos.Z), pk.Boolean(true)); err != nil {
		return err
	}
	return writeFields(w, mapID,
		pk.Int(cd.Pos.X*chunk.Width), pk.Short(0), pk.Int(cd.Pos.Z*chunk.Depth),
		pk.UnsignedByte(chunk.Width-1), pk.UnsignedByte(chunk.Height-1), pk.UnsignedByte(chunk.Depth-1),
		pk.Int(len(data)), rawBytes(data))
}
