package network

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/protocol"
)

// ErrStatusOnly клиент только запросил статус сервера и сессия не нужна
var ErrStatusOnly = errors.New("запрос статуса")

// ErrUnsupportedVersion версия клиента не входит в реестр. Клиенту уже
// отправлена причина отказа в формате его семейства.
type ErrUnsupportedVersion struct {
	Family protocol.Family
	Wire   int32
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("неподдерживаемая версия протокола %d (%s)", e.Wire, e.Family)
}

// ServerInfo сведения о сервере для рукопожатия и статуса
type ServerInfo struct {
	Name       string
	MOTD       string
	MaxPlayers int
	Seed       int64
	Online     func() int
}

func (i ServerInfo) online() int {
	if i.Online == nil {
		return 0
	}
	return i.Online()
}

// Hello результат успешного рукопожатия
type Hello struct {
	Version  protocol.Version
	Username string
	EntityID int32
}

// Handshaker определяет семейство протокола по первому байту и проводит
// рукопожатие до согласования версии. Аутентификации нет.
type Handshaker struct {
	registry *protocol.Registry
	info     ServerInfo
	nextEID  atomic.Int32
	log      *logging.Logger
}

// NewHandshaker создаёт обработчик рукопожатий
func NewHandshaker(r *protocol.Registry, info ServerInfo) *Handshaker {
	return &Handshaker{registry: r, info: info, log: logging.GetNetworkLogger()}
}

// Accept читает рукопожатие из rw и отвечает клиенту. При неподдерживаемой
// версии клиент получает причину отказа, а Accept возвращает *ErrUnsupportedVersion.
func (h *Handshaker) Accept(rw *bufio.ReadWriter) (Hello, error) {
	first, err := rw.Peek(1)
	if err != nil {
		return Hello{}, err
	}

	var hello Hello
	switch first[0] {
	case 0x00:
		hello, err = h.classic(rw)
	case 0x01, 0x02:
		hello, err = h.legacy(rw)
	case 0xFE:
		err = h.legacyPing(rw)
	default:
		hello, err = h.java(rw)
	}
	if flushErr := rw.Flush(); err == nil {
		err = flushErr
	}
	return hello, err
}

func (h *Handshaker) entityID() int32 {
	return h.nextEID.Add(1)
}

// rejection формирует текст отказа со списком версий семейства. Текст на
// ASCII: Classic не умеет показывать другие символы.
func (h *Handshaker) rejection(family protocol.Family, wire int32) string {
	names := make([]string, 0, 4)
	for _, v := range h.registry.All() {
		if v.Family == family {
			names = append(names, v.Name)
		}
	}
	return fmt.Sprintf("Unsupported protocol %d, supported: %s", wire, strings.Join(names, ", "))
}

// classic рукопожатие прототипа и Classic: 0x00, версия, имя, ключ, байт
func (h *Handshaker) classic(rw *bufio.ReadWriter) (Hello, error) {
	var (
		id     pk.UnsignedByte
		wire   pk.UnsignedByte
		name   fixedString
		key    fixedString
		unused pk.UnsignedByte
	)
	if err := readFields(rw, &id, &wire, &name, &key, &unused); err != nil {
		return Hello{}, fmt.Errorf("classic рукопожатие: %w", err)
	}

	v, ok := h.registry.LookupFamily(protocol.FamilyFixedString, int32(wire))
	if !ok {
		reason := h.rejection(protocol.FamilyFixedString, int32(wire))
		if err := writeFields(rw, pk.UnsignedByte(0x0E), fixedString(reason)); err != nil {
			return Hello{}, err
		}
		return Hello{}, &ErrUnsupportedVersion{Family: protocol.FamilyFixedString, Wire: int32(wire)}
	}

	if err := writeFields(rw,
		pk.UnsignedByte(0x00), wire,
		fixedString(h.info.Name), fixedString(h.info.MOTD),
		pk.UnsignedByte(0),
	); err != nil {
		return Hello{}, err
	}
	return Hello{Version: v, Username: string(name), EntityID: h.entityID()}, nil
}

// legacy рукопожатие Alpha/Beta: 0x02 с именем, ответ "-" без проверки,
// затем 0x01 логин с номером протокола
func (h *Handshaker) legacy(rw *bufio.ReadWriter) (Hello, error) {
	var id pk.UnsignedByte
	if err := readFields(rw, &id); err != nil {
		return Hello{}, err
	}
	if id == 0x02 {
		var name utf16String
		if err := readFields(rw, &name); err != nil {
			return Hello{}, fmt.Errorf("beta рукопожатие: %w", err)
		}
		if err := writeFields(rw, pk.UnsignedByte(0x02), utf16String("-")); err != nil {
			return Hello{}, err
		}
		if err := rw.Flush(); err != nil {
			return Hello{}, err
		}
		if err := readFields(rw, &id); err != nil {
			return Hello{}, err
		}
	}
	if id != 0x01 {
		return Hello{}, fmt.Errorf("beta: ожидался логин 0x01, получен 0x%02X", byte(id))
	}

	var (
		wire      pk.Int
		name      utf16String
		seed      pk.Long
		dimension pk.Byte
	)
	if err := readFields(rw, &wire, &name, &seed, &dimension); err != nil {
		return Hello{}, fmt.Errorf("beta логин: %w", err)
	}

	v, ok := h.registry.LookupFamily(protocol.FamilyUTF16, int32(wire))
	if !ok {
		reason := h.rejection(protocol.FamilyUTF16, int32(wire))
		if err := writeFields(rw, pk.UnsignedByte(0xFF), utf16String(truncate(reason, maxUTF16Len))); err != nil {
			return Hello{}, err
		}
		return Hello{}, &ErrUnsupportedVersion{Family: protocol.FamilyUTF16, Wire: int32(wire)}
	}

	eid := h.entityID()
	if err := writeFields(rw,
		pk.UnsignedByte(0x01), pk.Int(eid), utf16String(""),
		pk.Long(h.info.Seed), pk.Byte(0),
	); err != nil {
		return Hello{}, err
	}
	return Hello{Version: v, Username: string(name), EntityID: eid}, nil
}

// legacyPing старый пинг списка серверов: ответ кик-пакетом "motd§online§max"
func (h *Handshaker) legacyPing(rw *bufio.ReadWriter) error {
	if _, err := rw.ReadByte(); err != nil {
		return err
	}
	status := fmt.Sprintf("%s§%d§%d", h.info.MOTD, h.info.online(), h.info.MaxPlayers)
	if err := writeFields(rw, pk.UnsignedByte(0xFF), utf16String(truncate(status, maxUTF16Len))); err != nil {
		return err
	}
	return ErrStatusOnly
}
