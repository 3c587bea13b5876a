package protocol

// Direction направление пакета
type Direction uint8

const (
	Clientbound Direction = iota
	Serverbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

// Packet абстрактный вид пакета, не зависящий от версии
type Packet uint8

const (
	PacketUnknown Packet = iota

	// Clientbound
	PacketBlockChange
	PacketChat
	PacketTeleport
	PacketRelativeMove
	PacketRelativeMoveLook
	PacketTimeUpdate
	PacketWeather
	PacketPreChunk
	PacketChunkData
	PacketLevelInit
	PacketLevelData
	PacketLevelFinalize
	PacketSetSlot
	PacketDisconnect

	// Serverbound
	PacketHandshake
	PacketLogin
	PacketPlayerPosition
	PacketPlaceBlock
)

var packetNames = map[Packet]string{
	PacketBlockChange:      "block_change",
	PacketChat:             "chat",
	PacketTeleport:         "teleport",
	PacketRelativeMove:     "relative_move",
	PacketRelativeMoveLook: "relative_move_look",
	PacketTimeUpdate:       "time_update",
	PacketWeather:          "weather",
	PacketPreChunk:         "pre_chunk",
	PacketChunkData:        "chunk_data",
	PacketLevelInit:        "level_init",
	PacketLevelData:        "level_data",
	PacketLevelFinalize:    "level_finalize",
	PacketSetSlot:          "set_slot",
	PacketDisconnect:       "disconnect",
	PacketHandshake:        "handshake",
	PacketLogin:            "login",
	PacketPlayerPosition:   "player_position",
	PacketPlaceBlock:       "place_block",
}

func (p Packet) String() string {
	if name, ok := packetNames[p]; ok {
		return name
	}
	return "unknown"
}

// PacketTable сопоставляет абстрактным пакетам их числовые идентификаторы в версии.
// Отсутствие записи означает, что версия такой пакет не поддерживает.
type PacketTable map[Packet]uint32

// ID возвращает идентификатор пакета в версии
func (t PacketTable) ID(p Packet) (uint32, bool) {
	id, ok := t[p]
	return id, ok
}

var (
	prototypeClientbound = PacketTable{
		PacketLevelInit:     0x02,
		PacketLevelData:     0x03,
		PacketLevelFinalize: 0x04,
		PacketBlockChange:   0x06,
		PacketTeleport:      0x08,
		PacketDisconnect:    0x0E,
	}
	prototypeServerbound = PacketTable{
		PacketHandshake:      0x00,
		PacketPlaceBlock:     0x05,
		PacketPlayerPosition: 0x08,
	}

	classicClientbound = PacketTable{
		PacketLevelInit:        0x02,
		PacketLevelData:        0x03,
		PacketLevelFinalize:    0x04,
		PacketBlockChange:      0x06,
		PacketTeleport:         0x08,
		PacketRelativeMoveLook: 0x09,
		PacketRelativeMove:     0x0A,
		PacketChat:             0x0D,
		PacketDisconnect:       0x0E,
	}
	classicServerbound = PacketTable{
		PacketHandshake:      0x00,
		PacketPlaceBlock:     0x05,
		PacketPlayerPosition: 0x08,
		PacketChat:           0x0D,
	}

	alphaClientbound = PacketTable{
		PacketChat:             0x03,
		PacketTimeUpdate:       0x04,
		PacketRelativeMove:     0x1F,
		PacketRelativeMoveLook: 0x21,
		PacketTeleport:         0x22,
		PacketPreChunk:         0x32,
		PacketChunkData:        0x33,
		PacketBlockChange:      0x35,
		PacketSetSlot:          0x67,
		PacketDisconnect:       0xFF,
	}
	alphaServerbound = PacketTable{
		PacketLogin:          0x01,
		PacketHandshake:      0x02,
		PacketChat:           0x03,
		PacketPlayerPosition: 0x0B,
		PacketPlaceBlock:     0x0F,
	}

	java113Clientbound = PacketTable{
		PacketBlockChange:      0x0B,
		PacketChat:             0x0E,
		PacketSetSlot:          0x17,
		PacketDisconnect:       0x1B,
		PacketWeather:          0x20,
		PacketRelativeMove:     0x28,
		PacketRelativeMoveLook: 0x29,
		PacketTimeUpdate:       0x4A,
		PacketTeleport:         0x50,
	}
	java116Clientbound = PacketTable{
		PacketBlockChange:      0x0B,
		PacketChat:             0x0E,
		PacketSetSlot:          0x15,
		PacketDisconnect:       0x19,
		PacketWeather:          0x1D,
		PacketRelativeMove:     0x27,
		PacketRelativeMoveLook: 0x28,
		PacketTimeUpdate:       0x4E,
		PacketTeleport:         0x56,
	}
	javaServerbound = PacketTable{
		PacketHandshake: 0x00,
		PacketLogin:     0x00,
	}

	bedrockClientbound = PacketTable{
		PacketDisconnect:       0x05,
		PacketChat:             0x09,
		PacketTimeUpdate:       0x0A,
		PacketTeleport:         0x12,
		PacketBlockChange:      0x15,
		PacketSetSlot:          0x32,
		PacketChunkData:        0x3A,
		PacketRelativeMove:     0x6F,
		PacketRelativeMoveLook: 0x6F,
	}
	bedrockServerbound = PacketTable{
		PacketLogin:          0x01,
		PacketChat:           0x09,
		PacketPlayerPosition: 0x13,
	}
)

// defaultPackets возвращает стандартную таблицу для версии.
// Java 1.13+ не получает ChunkData: кодек этих эпох не реализован,
// клиенту уходят только изменения отдельных блоков.
func defaultPackets(v Version, dir Direction) (PacketTable, bool) {
	switch v.Space {
	case SpacePrototype:
		return pick(dir, prototypeClientbound, prototypeServerbound), true
	case SpaceClassic:
		return pick(dir, classicClientbound, classicServerbound), true
	case SpaceLegacy:
		if dir == Serverbound {
			return alphaServerbound, true
		}
		if IsAtLeast(v, Beta1_5_01) {
			return withPacket(alphaClientbound, PacketWeather, 0x46), true
		}
		return alphaClientbound, true
	case SpaceFlattened113:
		return pick(dir, java113Clientbound, javaServerbound), true
	case SpaceFlattened116:
		return pick(dir, java116Clientbound, javaServerbound), true
	case SpaceRuntime:
		return pick(dir, bedrockClientbound, bedrockServerbound), true
	}
	return nil, false
}

func pick(dir Direction, clientbound, serverbound PacketTable) PacketTable {
	if dir == Serverbound {
		return serverbound
	}
	return clientbound
}

func withPacket(base PacketTable, p Packet, id uint32) PacketTable {
	out := make(PacketTable, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[p] = id
	return out
}
