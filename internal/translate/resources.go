package translate

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed resources/*.yaml
var embedded embed.FS

// Имена ресурсных таблиц. Каталог переопределения использует те же имена.
const (
	ResourcePrototype    = "legacy_prototype.yaml"
	ResourceClassic      = "legacy_classic.yaml"
	ResourceFlattened113 = "flattened_1_13.yaml"
	ResourceFlattened116 = "flattened_1_16.yaml"
	ResourceBedrockNames = "bedrock_names.yaml"
)

// numericTable содержимое таблицы id -> id
type numericTable struct {
	Name     string         `yaml:"name"`
	Fallback uint32         `yaml:"fallback"`
	Entries  map[int]uint32 `yaml:"entries"`
}

// nameTable содержимое таблицы id -> строковое имя
type nameTable struct {
	Name    string         `yaml:"name"`
	Entries map[int]string `yaml:"entries"`
}

// resourceLoader ищет таблицу сначала в каталоге переопределения, затем во встроенных ресурсах
type resourceLoader struct {
	dir string
}

func (l resourceLoader) read(name string) ([]byte, error) {
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("чтение ресурса %s: %w", name, err)
		}
	}
	data, err := embedded.ReadFile("resources/" + name)
	if err != nil {
		return nil, fmt.Errorf("ресурс %s не найден: %w", name, err)
	}
	return data, nil
}

func (l resourceLoader) numeric(name string) (*numericTable, error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	var t numericTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("разбор ресурса %s: %w", name, err)
	}
	return &t, nil
}

func (l resourceLoader) names(name string) (*nameTable, error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	var t nameTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("разбор ресурса %s: %w", name, err)
	}
	return &t, nil
}
