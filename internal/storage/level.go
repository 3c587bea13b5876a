package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

const (
	levelFile   = "level.dat"
	sessionFile = "session.lock"

	// RegionLevelVersion версия level.dat для мира в регионах
	RegionLevelVersion = 19132
)

// ErrSessionLost мир открыт другим процессом после нас
var ErrSessionLost = errors.New("session.lock перехвачен другим процессом")

// LevelInfo метаданные мира из level.dat
type LevelInfo struct {
	RandomSeed int64  `nbt:"RandomSeed"`
	SpawnX     int32  `nbt:"SpawnX"`
	SpawnY     int32  `nbt:"SpawnY"`
	SpawnZ     int32  `nbt:"SpawnZ"`
	Time       int64  `nbt:"Time"`
	LastPlayed int64  `nbt:"LastPlayed"`
	SizeOnDisk int64  `nbt:"SizeOnDisk"`
	LevelName  string `nbt:"LevelName"`
	Version    int32  `nbt:"version"`
}

type levelRoot struct {
	Data LevelInfo `nbt:"Data"`
}

// ReadLevel читает level.dat. Если файла нет, ошибка оборачивает fs.ErrNotExist.
func ReadLevel(root string) (*LevelInfo, error) {
	path := filepath.Join(root, levelFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("level.dat: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("level.dat: распаковка: %w", err)
	}
	defer zr.Close()

	var lr levelRoot
	if _, err := nbt.NewDecoder(zr).Decode(&lr); err != nil {
		return nil, fmt.Errorf("level.dat: %w", err)
	}
	return &lr.Data, nil
}

// WriteLevel записывает level.dat, обновляя LastPlayed
func WriteLevel(root string, info *LevelInfo) error {
	info.LastPlayed = time.Now().UnixMilli()

	path := filepath.Join(root, levelFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("level.dat: %w", err)
	}

	zw := gzip.NewWriter(f)
	if err := nbt.NewEncoder(zw).Encode(levelRoot{Data: *info}, ""); err != nil {
		f.Close()
		return fmt.Errorf("level.dat: кодирование: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("level.dat: сжатие: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("level.dat: %w", err)
	}
	return os.Rename(tmp, path)
}

// AcquireSession записывает в session.lock текущее время в миллисекундах
// и возвращает его как отметку сессии
func AcquireSession(root string) (int64, error) {
	stamp := time.Now().UnixMilli()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(stamp))
	if err := os.WriteFile(filepath.Join(root, sessionFile), buf[:], 0644); err != nil {
		return 0, fmt.Errorf("session.lock: %w", err)
	}
	return stamp, nil
}

// CheckSession проверяет, что session.lock всё ещё содержит нашу отметку
func CheckSession(root string, stamp int64) error {
	data, err := os.ReadFile(filepath.Join(root, sessionFile))
	if err != nil {
		return fmt.Errorf("session.lock: %w", err)
	}
	if len(data) != 8 || int64(binary.BigEndian.Uint64(data)) != stamp {
		return ErrSessionLost
	}
	return nil
}
