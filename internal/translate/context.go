// Package translate переводит идентификаторы блоков между каноническим legacy
// пространством и пространствами клиентов: старые палитры, глобальные state id
// эпох flattening и runtime id Bedrock.
package translate

import (
	"os"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/protocol"
)

// Options параметры построения контекста трансляции
type Options struct {
	// ResourceDir каталог с таблицами, переопределяющими встроенные
	ResourceDir string
	// ForeignPalettePath путь к канонической палитре Bedrock
	ForeignPalettePath string
	// Palette уже загруженная палитра; имеет приоритет над ForeignPalettePath
	Palette []PaletteEntry
	Logger  *logging.Logger
}

// Context все таблицы трансляции. Строится один раз при старте и
// передаётся компонентам по ссылке; после построения только читается.
type Context struct {
	prototype *tableMapper
	classic   *tableMapper
	flat113   *tableMapper
	flat116   *tableMapper
	runtime   *RuntimeTable
	log       *logging.Logger
}

// NewContext загружает таблицы. Отсутствие ресурса не останавливает запуск:
// в лог пишется предупреждение, соответствующая таблица переводит всё в воздух.
func NewContext(opts Options) *Context {
	log := opts.Logger
	if log == nil {
		log = logging.GetTranslateLogger()
	}
	loader := resourceLoader{dir: opts.ResourceDir}

	c := &Context{log: log}
	c.prototype = c.loadTable(loader, ResourcePrototype, protocol.SpacePrototype)
	c.classic = c.loadTable(loader, ResourceClassic, protocol.SpaceClassic)
	c.flat113 = c.loadTable(loader, ResourceFlattened113, protocol.SpaceFlattened113)
	c.flat116 = c.loadTable(loader, ResourceFlattened116, protocol.SpaceFlattened116)
	c.runtime = c.loadRuntime(loader, opts)

	log.Info("🧱 Таблицы трансляции загружены: bedrock %d/%d id разрешено, палитра %d записей",
		c.runtime.Resolved(), Domain, c.runtime.PaletteSize())
	return c
}

func (c *Context) loadTable(loader resourceLoader, name string, space protocol.BlockSpace) *tableMapper {
	t, err := loader.numeric(name)
	if err != nil {
		c.log.Warn("⚠️ Таблица %s недоступна, используется только воздух: %v", name, err)
		return airOnlyMapper(space, name)
	}
	return newTableMapper(space, t)
}

func (c *Context) loadRuntime(loader resourceLoader, opts Options) *RuntimeTable {
	names, err := loader.names(ResourceBedrockNames)
	if err != nil {
		c.log.Warn("⚠️ Имена блоков Bedrock недоступны, мост переводит всё в воздух: %v", err)
		return airOnlyRuntime()
	}

	palette := opts.Palette
	if palette == nil {
		if opts.ForeignPalettePath == "" {
			c.log.Warn("⚠️ Палитра Bedrock не задана, мост переводит всё в воздух")
			return airOnlyRuntime()
		}
		f, err := os.Open(opts.ForeignPalettePath)
		if err != nil {
			c.log.Warn("⚠️ Палитра Bedrock %s недоступна: %v", opts.ForeignPalettePath, err)
			return airOnlyRuntime()
		}
		defer f.Close()

		palette, err = ReadPalette(f)
		if err != nil {
			c.log.Warn("⚠️ Палитра Bedrock %s повреждена: %v", opts.ForeignPalettePath, err)
			return airOnlyRuntime()
		}
	}
	return BuildRuntimeTable(palette, names.Entries)
}

// ForVersion возвращает таблицу для пространства идентификаторов клиента
func (c *Context) ForVersion(v protocol.Version) Mapper {
	switch v.Space {
	case protocol.SpacePrototype:
		return c.prototype
	case protocol.SpaceClassic:
		return c.classic
	case protocol.SpaceFlattened113:
		return c.flat113
	case protocol.SpaceFlattened116:
		return c.flat116
	case protocol.SpaceRuntime:
		return c.runtime
	default:
		return eraMapper{types: clampTypes(v.BlockTypes)}
	}
}

func clampTypes(n int) int {
	if n <= 0 || n > Domain {
		return Domain
	}
	return n
}

// FlattenedState переводит канонический id в глобальный state id эпохи
func (c *Context) FlattenedState(space protocol.BlockSpace, id int) uint32 {
	switch space {
	case protocol.SpaceFlattened113:
		return c.flat113.Map(id)
	case protocol.SpaceFlattened116:
		return c.flat116.Map(id)
	default:
		return FlattenedStone
	}
}

// RuntimeID переводит канонический id в runtime id Bedrock
func (c *Context) RuntimeID(id int) uint32 {
	return c.runtime.Map(id)
}

// Runtime возвращает мост Bedrock
func (c *Context) Runtime() *RuntimeTable {
	return c.runtime
}
