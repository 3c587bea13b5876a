// Package events содержит закрытый набор канонических исходящих событий.
// Каждое событие порождается изменением канонического мира и проходит через
// шлюз версии соединения перед отправкой.
package events

import (
	"fmt"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Outbound исходящее событие. Набор реализаций закрыт: метод sealed
// неэкспортируемый, новые варианты добавляются только в этом пакете.
type Outbound interface {
	// Packet возвращает абстрактный пакет, которым событие уходит клиенту
	Packet() protocol.Packet
	sealed()
}

// BlockChange изменение одного блока. Block хранит канонический legacy id;
// шлюз переписывает его в пространство идентификаторов клиента.
type BlockChange struct {
	Pos      vec.Vec3
	Block    uint32
	Metadata byte
}

// Chat сообщение чата
type Chat struct {
	Message string
}

// Teleport абсолютная позиция сущности
type Teleport struct {
	EntityID   int32
	Pos        vec.Vec3Float
	Yaw, Pitch float32
}

// RelativeMove относительное перемещение сущности в блоках
type RelativeMove struct {
	EntityID   int32
	Delta      vec.Vec3Float
	HasLook    bool
	Yaw, Pitch float32
}

// TimeUpdate время суток мира в тиках
type TimeUpdate struct {
	Time int64
}

// Weather начало или конец дождя
type Weather struct {
	Raining bool
}

// ChunkData полный чанк. Chunk - снимок, освещение в нём уже посчитано.
type ChunkData struct {
	Pos   vec.Vec2
	Chunk *chunk.Chunk
}

// SetSlot содержимое слота инвентаря. Item - канонический legacy id блока-предмета.
type SetSlot struct {
	Window byte
	Slot   int16
	Item   uint32
	Count  byte
	Damage int16
}

// Disconnect отключение с причиной
type Disconnect struct {
	Reason string
}

func (BlockChange) Packet() protocol.Packet { return protocol.PacketBlockChange }
func (Chat) Packet() protocol.Packet        { return protocol.PacketChat }
func (Teleport) Packet() protocol.Packet    { return protocol.PacketTeleport }
func (m RelativeMove) Packet() protocol.Packet {
	if m.HasLook {
		return protocol.PacketRelativeMoveLook
	}
	return protocol.PacketRelativeMove
}
func (TimeUpdate) Packet() protocol.Packet { return protocol.PacketTimeUpdate }
func (Weather) Packet() protocol.Packet    { return protocol.PacketWeather }
func (ChunkData) Packet() protocol.Packet  { return protocol.PacketChunkData }
func (SetSlot) Packet() protocol.Packet    { return protocol.PacketSetSlot }
func (Disconnect) Packet() protocol.Packet { return protocol.PacketDisconnect }

func (BlockChange) sealed()  {}
func (Chat) sealed()         {}
func (Teleport) sealed()     {}
func (RelativeMove) sealed() {}
func (TimeUpdate) sealed()   {}
func (Weather) sealed()      {}
func (ChunkData) sealed()    {}
func (SetSlot) sealed()      {}
func (Disconnect) sealed()   {}

// Describe возвращает короткое описание события для логов
func Describe(ev Outbound) string {
	switch e := ev.(type) {
	case BlockChange:
		return fmt.Sprintf("block_change %v id=%d meta=%d", e.Pos, e.Block, e.Metadata)
	case Chat:
		return fmt.Sprintf("chat %q", e.Message)
	case Teleport:
		return fmt.Sprintf("teleport #%d %.2f,%.2f,%.2f", e.EntityID, e.Pos.X, e.Pos.Y, e.Pos.Z)
	case RelativeMove:
		return fmt.Sprintf("relative_move #%d %+.2f,%+.2f,%+.2f", e.EntityID, e.Delta.X, e.Delta.Y, e.Delta.Z)
	case TimeUpdate:
		return fmt.Sprintf("time %d", e.Time)
	case Weather:
		return fmt.Sprintf("weather raining=%t", e.Raining)
	case ChunkData:
		return fmt.Sprintf("chunk %d,%d", e.Pos.X, e.Pos.Z)
	case SetSlot:
		return fmt.Sprintf("set_slot %d:%d item=%d x%d", e.Window, e.Slot, e.Item, e.Count)
	case Disconnect:
		return fmt.Sprintf("disconnect %q", e.Reason)
	default:
		panic(fmt.Sprintf("events: неизвестный вариант события %T", ev))
	}
}
