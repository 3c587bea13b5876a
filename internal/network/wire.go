package network

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf16"

	pk "github.com/Tnze/go-mc/net/packet"
)

const (
	// fixedStringLen длина строки Classic
	fixedStringLen = 64
	// levelChunkSize размер куска уровня в пакете LevelData
	levelChunkSize = 1024
	// maxUTF16Len максимальная длина строки Alpha/Beta в символах
	maxUTF16Len = 256
)

// fixedString строка Classic: 64 байта ASCII, дополненные пробелами
type fixedString string

func (s fixedString) WriteTo(w io.Writer) (int64, error) {
	var buf [fixedStringLen]byte
	for i := range buf {
		buf[i] = ' '
	}
	i := 0
	for _, r := range string(s) {
		if i == fixedStringLen {
			break
		}
		if r < 0x20 || r > 0x7E {
			r = '?'
		}
		buf[i] = byte(r)
		i++
	}
	n, err := w.Write(buf[:])
	return int64(n), err
}

func (s *fixedString) ReadFrom(r io.Reader) (int64, error) {
	var buf [fixedStringLen]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return int64(n), err
	}
	*s = fixedString(strings.TrimRight(string(buf[:]), " "))
	return int64(n), nil
}

// utf16String строка Alpha/Beta: short длина в символах, затем UTF-16BE
type utf16String string

func (s utf16String) WriteTo(w io.Writer) (int64, error) {
	units := utf16.Encode([]rune(string(s)))
	if len(units) > math.MaxInt16 {
		return 0, fmt.Errorf("строка слишком длинная: %d символов", len(units))
	}
	buf := make([]byte, 2+2*len(units))
	buf[0], buf[1] = byte(len(units)>>8), byte(len(units))
	for i, u := range units {
		buf[2+2*i], buf[3+2*i] = byte(u>>8), byte(u)
	}
	n, err := w.Write(buf)
	return int64(n), err
}

func (s *utf16String) ReadFrom(r io.Reader) (int64, error) {
	var length pk.Short
	n, err := length.ReadFrom(r)
	if err != nil {
		return n, err
	}
	if length < 0 || int(length) > maxUTF16Len {
		return n, fmt.Errorf("недопустимая длина строки: %d", length)
	}
	buf := make([]byte, 2*int(length))
	m, err := io.ReadFull(r, buf)
	n += int64(m)
	if err != nil {
		return n, err
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	*s = utf16String(utf16.Decode(units))
	return n, nil
}

// writeFields пишет поля пакета подряд
func writeFields(w io.Writer, fields ...pk.FieldEncoder) error {
	for _, f := range fields {
		if _, err := f.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// readFields читает поля пакета подряд
func readFields(r io.Reader, fields ...pk.FieldDecoder) error {
	for _, f := range fields {
		if _, err := f.ReadFrom(r); err != nil {
			return err
		}
	}
	return nil
}

// fixedPoint координата в 1/32 блока
func fixedPoint(v float64) int32 {
	return int32(math.Floor(v * 32))
}

// angle угол в градусах в 1/256 оборота
func angle(deg float32) pk.UnsignedByte {
	return pk.UnsignedByte(byte(int(math.Round(float64(deg) * 256 / 360))))
}

// delta относительное смещение в единицах версии
func delta(v float64, unitsPerBlock int) int {
	return int(math.Round(v * float64(unitsPerBlock)))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

// rawBytes байты без префикса длины
type rawBytes []byte

func (b rawBytes) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}
