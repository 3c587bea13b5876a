package network

import (
	"context"
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Пакеты Alpha/Beta, которые читаются и пропускаются: id -> размер тела
var legacySkipped = map[byte]int{
	0x00: 0,  // keep alive
	0x0A: 1,  // on ground
	0x0C: 9,  // look
	0x0D: 41, // position and look
	0x10: 2,  // holding change
	0x12: 5,  // animation
	0x13: 5,  // entity action
	0x65: 1,  // close window
}

const (
	legacyDigging     = 0x0E
	legacyKick        = 0xFF
	legacyDigFinished = 2
)

// readClassic входящие пакеты Classic. Координаты блоков приходят в системе
// уровня, уровень - чанк точки появления.
func (s *Session) readClassic(ctx context.Context) error {
	origin := s.opts.Spawn.ChunkCoords()
	for {
		var id pk.UnsignedByte
		if err := readFields(s.r, &id); err != nil {
			return err
		}
		switch s.inbound[byte(id)] {
		case protocol.PacketPlaceBlock:
			var (
				x, y, z pk.Short
				mode    pk.UnsignedByte
				kind    pk.UnsignedByte
			)
			if err := readFields(s.r, &x, &y, &z, &mode, &kind); err != nil {
				return err
			}
			pos := vec.Vec3{X: origin.X*chunk.Width + int(x), Y: int(y), Z: origin.Z*chunk.Depth + int(z)}
			b := block.BlockID(kind)
			if mode == 0 {
				b = block.AirBlockID
			}
			// Блок приходит в пространстве клиента
			if err := s.submit(ctx, pos, s.gate.Mapper().Legacy(uint32(b)), 0); err != nil {
				return err
			}
		case protocol.PacketPlayerPosition:
			var (
				pid        pk.Byte
				x, y, z    pk.Short
				yaw, pitch pk.UnsignedByte
			)
			if err := readFields(s.r, &pid, &x, &y, &z, &yaw, &pitch); err != nil {
				return err
			}
		case protocol.PacketChat:
			var (
				unused pk.Byte
				msg    fixedString
			)
			if err := readFields(s.r, &unused, &msg); err != nil {
				return err
			}
			if err := s.chat(ctx, string(msg)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("classic: неожиданный пакет 0x%02X", byte(id))
		}
	}
}

// readLegacy входящие пакеты Alpha/Beta
func (s *Session) readLegacy(ctx context.Context) error {
	for {
		var id pk.UnsignedByte
		if err := readFields(s.r, &id); err != nil {
			return err
		}
		if n, ok := legacySkipped[byte(id)]; ok {
			if _, err := s.r.Discard(n); err != nil {
				return err
			}
			continue
		}

		switch byte(id) {
		case legacyDigging:
			var (
				status, face pk.Byte
				x, z         pk.Int
				y            pk.Byte
			)
			if err := readFields(s.r, &status, &x, &y, &z, &face); err != nil {
				return err
			}
			if status == legacyDigFinished {
				pos := vec.Vec3{X: int(x), Y: int(y), Z: int(z)}
				if err := s.submit(ctx, pos, block.AirBlockID, 0); err != nil {
					return err
				}
			}
			continue
		case legacyKick:
			var reason utf16String
			if err := readFields(s.r, &reason); err != nil {
				return err
			}
			s.log.Info("👋 %s отключился: %s", s.Hello.Username, reason)
			return io.EOF
		}

		switch s.inbound[byte(id)] {
		case protocol.PacketChat:
			var msg utf16String
			if err := readFields(s.r, &msg); err != nil {
				return err
			}
			if err := s.chat(ctx, string(msg)); err != nil {
				return err
			}
		case protocol.PacketPlayerPosition:
			var (
				x, y, stance, z pk.Double
				onGround        pk.Boolean
			)
			if err := readFields(s.r, &x, &y, &stance, &z, &onGround); err != nil {
				return err
			}
		case protocol.PacketPlaceBlock:
			if err := s.readLegacyPlace(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("beta: неожиданный пакет 0x%02X", byte(id))
		}
	}
}

// faceOffsets смещение к соседнему блоку по грани: -y, +y, -z, +z, -x, +x
var faceOffsets = [6]vec.Vec3{
	{Y: -1}, {Y: 1}, {Z: -1}, {Z: 1}, {X: -1}, {X: 1},
}

func (s *Session) readLegacyPlace(ctx context.Context) error {
	var (
		x, z pk.Int
		y    pk.Byte
		face pk.Byte
		item pk.Short
	)
	if err := readFields(s.r, &x, &y, &z, &face, &item); err != nil {
		return err
	}
	if item < 0 {
		return nil
	}
	var (
		count  pk.Byte
		damage pk.Short
	)
	if err := readFields(s.r, &count, &damage); err != nil {
		return err
	}
	// face -1 означает использование предмета в руке
	if face < 0 || int(face) >= len(faceOffsets) || item == 0 || item >= 256 {
		return nil
	}
	pos := vec.Vec3{X: int(x), Y: int(y), Z: int(z)}.Add(faceOffsets[face])
	return s.submit(ctx, pos, block.BlockID(item), byte(damage))
}

func (s *Session) submit(ctx context.Context, pos vec.Vec3, b block.BlockID, meta byte) error {
	err := s.world.Submit(ctx, world.Change{Pos: pos, Block: b, Metadata: meta})
	if err != nil {
		return fmt.Errorf("изменение блока %v: %w", pos, err)
	}
	return nil
}

func (s *Session) chat(ctx context.Context, msg string) error {
	s.log.Info("💬 <%s> %s", s.Hello.Username, msg)
	return s.world.Announce(ctx, events.Chat{Message: fmt.Sprintf("<%s> %s", s.Hello.Username, msg)})
}
