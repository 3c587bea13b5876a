package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	World       WorldConfig       `yaml:"world"`
	Translation TranslationConfig `yaml:"translation"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	Name        string `yaml:"name"`
	MOTD        string `yaml:"motd"`
	MaxPlayers  int    `yaml:"max_players"`
	TickRate    int    `yaml:"tick_rate_hz"`
	ViewRadius  int    `yaml:"view_radius"`
	OutboundBuf int    `yaml:"outbound_buffer"`
}

type WorldConfig struct {
	Path          string `yaml:"path"`
	Seed          int64  `yaml:"seed"`
	Storage       string `yaml:"storage"` // alpha | region | badger
	LoaderWorkers int    `yaml:"loader_workers"`
	SaveEvery     int    `yaml:"save_every_seconds"`
}

type TranslationConfig struct {
	// ResourceDir переопределяет встроенные таблицы соответствия (по имени файла).
	ResourceDir string `yaml:"resource_dir"`
	// ForeignPalette путь к канонической палитре Bedrock (поток NBT little-endian).
	ForeignPalette string `yaml:"foreign_palette"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  "0.0.0.0",
			Name:        "polycraft",
			MOTD:        "A server for every era",
			MaxPlayers:  20,
			TickRate:    20,
			ViewRadius:  5,
			OutboundBuf: 512,
		},
		World: WorldConfig{
			Path:          "world",
			Seed:          1234,
			Storage:       "alpha",
			LoaderWorkers: 4,
			SaveEvery:     300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetPort возвращает игровой порт с поддержкой fallback значений
func (s *ServerConfig) GetPort() int {
	return getPortWithEnvFallback(s.Port, "POLYCRAFT_PORT", 25565)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "POLYCRAFT_METRICS_PORT", 2112)
}

// TickInterval возвращает длительность одного тика
func (s *ServerConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(s.TickRate)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые нельзя молча заменить дефолтом.
func (c *Config) Validate() error {
	switch c.World.Storage {
	case "alpha", "region", "badger":
	default:
		return fmt.Errorf("неизвестный тип хранилища мира: %q", c.World.Storage)
	}
	if c.World.LoaderWorkers <= 0 {
		return fmt.Errorf("loader_workers должен быть больше 0, получено %d", c.World.LoaderWorkers)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV POLYCRAFT_CONFIG; если и он пуст,
// возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("POLYCRAFT_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
