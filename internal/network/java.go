package network

import (
	"bufio"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/chat"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"

	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
)

// Состояния рукопожатия Java
const (
	javaStateStatus = 1
	javaStateLogin  = 2
)

// Пакеты состояний status и login одинаковы во всех поддерживаемых версиях
const (
	javaStatusResponse  = 0x00
	javaPong            = 0x01
	javaLoginDisconnect = 0x00
	javaLoginSuccess    = 0x02
)

type javaStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int32  `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
	Description chat.Message `json:"description"`
}

// chatJSON текст в формате JSON-компонента чата
func chatJSON(text string) pk.String {
	data, err := json.Marshal(chat.Text(text))
	if err != nil {
		panic(err)
	}
	return pk.String(data)
}

// offlineUUID UUID игрока без аутентификации: MD5 от "OfflinePlayer:<имя>", версия 3
func offlineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0F | 0x30
	sum[8] = sum[8]&0x3F | 0x80
	return uuid.UUID(sum)
}

// java рукопожатие Java: Handshake, затем status или login
func (h *Handshaker) java(rw *bufio.ReadWriter) (Hello, error) {
	var p pk.Packet
	if err := p.UnPack(rw, -1); err != nil {
		return Hello{}, fmt.Errorf("java рукопожатие: %w", err)
	}
	if p.ID != 0x00 {
		return Hello{}, fmt.Errorf("java: ожидалось рукопожатие, получен пакет 0x%02X", p.ID)
	}
	var (
		wire pk.VarInt
		addr pk.String
		port pk.UnsignedShort
		next pk.VarInt
	)
	if err := p.Scan(&wire, &addr, &port, &next); err != nil {
		return Hello{}, fmt.Errorf("java рукопожатие: %w", err)
	}

	switch next {
	case javaStateStatus:
		return Hello{}, h.javaStatus(rw, int32(wire))
	case javaStateLogin:
		return h.javaLogin(rw, int32(wire))
	default:
		return Hello{}, fmt.Errorf("java: неизвестное состояние %d", next)
	}
}

func (h *Handshaker) javaStatus(rw *bufio.ReadWriter, wire int32) error {
	var p pk.Packet
	if err := p.UnPack(rw, -1); err != nil {
		return err
	}

	var status javaStatus
	v, ok := h.registry.LookupFamily(protocol.FamilyVarIntUTF8, wire)
	if !ok {
		v = h.newestJava()
	}
	status.Version.Name = v.Name
	status.Version.Protocol = v.Wire
	status.Players.Max = h.info.MaxPlayers
	status.Players.Online = h.info.online()
	status.Description = chat.Text(h.info.MOTD)

	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	resp := pk.Marshal(javaStatusResponse, pk.String(data))
	if err := resp.Pack(rw, -1); err != nil {
		return err
	}
	if err := rw.Flush(); err != nil {
		return err
	}

	var ping pk.Packet
	if err := ping.UnPack(rw, -1); err != nil {
		// Клиент может закрыть соединение, не отправив пинг
		return ErrStatusOnly
	}
	var payload pk.Long
	if err := ping.Scan(&payload); err != nil {
		return err
	}
	pong := pk.Marshal(javaPong, payload)
	if err := pong.Pack(rw, -1); err != nil {
		return err
	}
	return ErrStatusOnly
}

func (h *Handshaker) newestJava() protocol.Version {
	var newest protocol.Version
	for _, v := range h.registry.All() {
		if v.Family == protocol.FamilyVarIntUTF8 {
			newest = v
		}
	}
	return newest
}

func (h *Handshaker) javaLogin(rw *bufio.ReadWriter, wire int32) (Hello, error) {
	var start pk.Packet
	if err := start.UnPack(rw, -1); err != nil {
		return Hello{}, fmt.Errorf("java login start: %w", err)
	}
	var name pk.String
	if err := start.Scan(&name); err != nil {
		return Hello{}, fmt.Errorf("java login start: %w", err)
	}

	v, ok := h.registry.LookupFamily(protocol.FamilyVarIntUTF8, wire)
	if !ok {
		reason := h.rejection(protocol.FamilyVarIntUTF8, wire)
		kick := pk.Marshal(javaLoginDisconnect, chatJSON(reason))
		if err := kick.Pack(rw, -1); err != nil {
			return Hello{}, err
		}
		return Hello{}, &ErrUnsupportedVersion{Family: protocol.FamilyVarIntUTF8, Wire: wire}
	}

	id := offlineUUID(string(name))
	var success pk.Packet
	if protocol.IsAtLeast(v, protocol.Java1_16_5) {
		success = pk.Marshal(javaLoginSuccess, pk.UUID(id), name)
	} else {
		success = pk.Marshal(javaLoginSuccess, pk.String(id.String()), name)
	}
	if err := success.Pack(rw, -1); err != nil {
		return Hello{}, err
	}
	return Hello{Version: v, Username: string(name), EntityID: h.entityID()}, nil
}

// javaEncoder пакеты Java эпохи flattening. Чанки не кодируются:
// фильтр отбрасывает ChunkData для этих версий.
type javaEncoder struct {
	version protocol.Version
	table   protocol.PacketTable
}

func (e *javaEncoder) position(x, y, z int) pk.FieldEncoder {
	if protocol.IsAtLeast(e.version, protocol.Java1_16_5) {
		return pk.Position{X: x, Y: y, Z: z}
	}
	return pk.Long(int64(x&0x3FFFFFF)<<38 | int64(y&0xFFF)<<26 | int64(z&0x3FFFFFF))
}

func (e *javaEncoder) encode(w io.Writer, ev events.Outbound) error {
	raw, ok := e.table.ID(ev.Packet())
	if !ok {
		return fmt.Errorf("java: пакет %s отсутствует в таблице %s", ev.Packet(), e.version)
	}
	id := int32(raw)
	units := e.version.Movement.UnitsPerBlock

	var p pk.Packet
	switch ev := ev.(type) {
	case events.BlockChange:
		p = pk.Marshal(id, e.position(ev.Pos.X, ev.Pos.Y, ev.Pos.Z), pk.VarInt(ev.Block))
	case events.Chat:
		if protocol.IsAtLeast(e.version, protocol.Java1_16_5) {
			p = pk.Marshal(id, chatJSON(ev.Message), pk.Byte(0), pk.UUID(uuid.Nil))
		} else {
			p = pk.Marshal(id, chatJSON(ev.Message), pk.Byte(0))
		}
	case events.Teleport:
		p = pk.Marshal(id, pk.VarInt(ev.EntityID),
			pk.Double(ev.Pos.X), pk.Double(ev.Pos.Y), pk.Double(ev.Pos.Z),
			angle(ev.Yaw), angle(ev.Pitch), pk.Boolean(true))
	case events.RelativeMove:
		fields := []pk.FieldEncoder{pk.VarInt(ev.EntityID),
			pk.Short(delta(ev.Delta.X, units)), pk.Short(delta(ev.Delta.Y, units)), pk.Short(delta(ev.Delta.Z, units))}
		if ev.HasLook {
			fields = append(fields, angle(ev.Yaw), angle(ev.Pitch))
		}
		p = pk.Marshal(id, append(fields, pk.Boolean(true))...)
	case events.TimeUpdate:
		p = pk.Marshal(id, pk.Long(ev.Time), pk.Long(ev.Time))
	case events.Weather:
		// 1 конец дождя, 2 начало
		reason := pk.UnsignedByte(1)
		if ev.Raining {
			reason = 2
		}
		p = pk.Marshal(id, reason, pk.Float(0))
	case events.SetSlot:
		if ev.Count == 0 {
			p = pk.Marshal(id, pk.Byte(ev.Window), pk.Short(ev.Slot), pk.Boolean(false))
		} else {
			p = pk.Marshal(id, pk.Byte(ev.Window), pk.Short(ev.Slot),
				pk.Boolean(true), pk.VarInt(ev.Item), pk.Byte(ev.Count), pk.Byte(0))
		}
	case events.Disconnect:
		p = pk.Marshal(id, chatJSON(ev.Reason))
	default:
		return fmt.Errorf("java: событие %s не кодируется", events.Describe(ev))
	}
	return p.Pack(w, -1)
}

// readJava читает и пропускает входящие пакеты до ошибки. Игровые пакеты
// Java после логина не обрабатываются.
func readJava(r io.Reader) error {
	for {
		var p pk.Packet
		if err := p.UnPack(r, -1); err != nil {
			return err
		}
	}
}
