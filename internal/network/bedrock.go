package network

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	mcprotocol "github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"

	"github.com/annel0/polycraft/internal/codec"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
)

// bedrockEncoder пакеты Bedrock. Каждый пакет пишется как элемент батча:
// varuint32 длина, заголовок, тело. Сжатие и шифрование батча делает
// транспорт RakNet, которого в ядре нет.
type bedrockEncoder struct {
	version protocol.Version
	chunks  *chunkEncoder
	header  packet.Header
	buf     bytes.Buffer
	batch   bytes.Buffer

	// Последние абсолютные позиции сущностей: MoveActorDelta несёт
	// абсолютные координаты, а событие знает только смещение
	positions map[int32]mgl32.Vec3
}

func newBedrockEncoder(v protocol.Version, chunks *chunkEncoder) *bedrockEncoder {
	return &bedrockEncoder{
		version:   v,
		chunks:    chunks,
		positions: make(map[int32]mgl32.Vec3),
	}
}

func (e *bedrockEncoder) write(w io.Writer, pk packet.Packet) error {
	e.buf.Reset()
	e.header.PacketID = pk.ID()
	if err := e.header.Write(&e.buf); err != nil {
		return err
	}
	pk.Marshal(mcprotocol.NewWriter(&e.buf, 0))

	e.batch.Reset()
	if err := mcprotocol.WriteVaruint32(&e.batch, uint32(e.buf.Len())); err != nil {
		return err
	}
	e.batch.Write(e.buf.Bytes())
	_, err := w.Write(e.batch.Bytes())
	return err
}

func (e *bedrockEncoder) encode(w io.Writer, ev events.Outbound) error {
	switch ev := ev.(type) {
	case events.BlockChange:
		return e.write(w, &packet.UpdateBlock{
			Position:          mcprotocol.BlockPos{int32(ev.Pos.X), int32(ev.Pos.Y), int32(ev.Pos.Z)},
			NewBlockRuntimeID: ev.Block,
			Flags:             packet.BlockUpdateNetwork,
		})
	case events.Chat:
		return e.write(w, &packet.Text{TextType: packet.TextTypeRaw, Message: ev.Message})
	case events.TimeUpdate:
		return e.write(w, &packet.SetTime{Time: int32(ev.Time)})
	case events.Teleport:
		pos := mgl32.Vec3{float32(ev.Pos.X), float32(ev.Pos.Y), float32(ev.Pos.Z)}
		e.positions[ev.EntityID] = pos
		return e.write(w, &packet.MoveActorAbsolute{
			EntityRuntimeID: uint64(ev.EntityID),
			Position:        pos,
			Rotation:        mgl32.Vec3{ev.Pitch, ev.Yaw, ev.Yaw},
		})
	case events.RelativeMove:
		pos, ok := e.positions[ev.EntityID]
		if !ok {
			return fmt.Errorf("bedrock: смещение сущности %d без абсолютной позиции", ev.EntityID)
		}
		pos = pos.Add(mgl32.Vec3{float32(ev.Delta.X), float32(ev.Delta.Y), float32(ev.Delta.Z)})
		e.positions[ev.EntityID] = pos
		flags := uint16(packet.MoveActorDeltaFlagHasX | packet.MoveActorDeltaFlagHasY | packet.MoveActorDeltaFlagHasZ)
		var rot mgl32.Vec3
		if ev.HasLook {
			flags |= packet.MoveActorDeltaFlagHasRotX | packet.MoveActorDeltaFlagHasRotY | packet.MoveActorDeltaFlagHasRotZ
			rot = mgl32.Vec3{ev.Pitch, ev.Yaw, ev.Yaw}
		}
		return e.write(w, &packet.MoveActorDelta{
			EntityRuntimeID: uint64(ev.EntityID),
			Flags:           flags,
			Position:        pos,
			Rotation:        rot,
		})
	case events.SetSlot:
		item := mcprotocol.ItemInstance{}
		if ev.Count > 0 {
			item.Stack = mcprotocol.ItemStack{
				ItemType: mcprotocol.ItemType{NetworkID: int32(ev.Item), MetadataValue: uint32(ev.Damage)},
				Count:    uint16(ev.Count),
			}
		}
		return e.write(w, &packet.InventorySlot{WindowID: uint32(ev.Window), Slot: uint32(ev.Slot), NewItem: item})
	case events.ChunkData:
		if e.chunks == nil {
			return fmt.Errorf("bedrock: у версии %s нет формата чанков", e.version)
		}
		data, err := e.chunks.encode(ev.Chunk)
		if err != nil {
			return err
		}
		slabs := e.chunks.codec.(codec.Paletted).SlabCount()
		return e.write(w, &packet.LevelChunk{
			Position:      mcprotocol.ChunkPos{int32(ev.Pos.X), int32(ev.Pos.Z)},
			SubChunkCount: uint32(slabs),
			RawPayload:    data,
		})
	case events.Disconnect:
		return e.write(w, &packet.Disconnect{Message: ev.Reason})
	default:
		return fmt.Errorf("bedrock: событие %s не кодируется", events.Describe(ev))
	}
}
