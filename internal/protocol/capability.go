package protocol

import "strings"

// Capability именованная возможность протокола
type Capability uint8

const (
	CapChat Capability = iota
	CapRelativeMovement
	CapBlockMetadata
	CapInventory
	CapDayNightCycle
	CapWeather
	CapFlattenedBlocks
	CapPalettedChunks

	capabilityCount
)

var capabilityNames = [capabilityCount]string{
	CapChat:             "chat",
	CapRelativeMovement: "relative-movement",
	CapBlockMetadata:    "block-metadata",
	CapInventory:        "inventory",
	CapDayNightCycle:    "day-night-cycle",
	CapWeather:          "weather",
	CapFlattenedBlocks:  "flattened-blocks",
	CapPalettedChunks:   "paletted-chunks",
}

func (c Capability) String() string {
	if c < capabilityCount {
		return capabilityNames[c]
	}
	return "unknown"
}

// AllCapabilities перечисляет все известные возможности
func AllCapabilities() []Capability {
	out := make([]Capability, 0, capabilityCount)
	for c := Capability(0); c < capabilityCount; c++ {
		out = append(out, c)
	}
	return out
}

// CapabilitySet набор возможностей в виде битовой маски
type CapabilitySet uint32

// Has проверяет наличие возможности в наборе
func (s CapabilitySet) Has(c Capability) bool {
	return s&(1<<c) != 0
}

func (s CapabilitySet) with(c Capability) CapabilitySet {
	return s | 1<<c
}

// List возвращает возможности набора в порядке объявления
func (s CapabilitySet) List() []Capability {
	var out []Capability
	for c := Capability(0); c < capabilityCount; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s CapabilitySet) String() string {
	names := make([]string, 0, capabilityCount)
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Introductions стандартная таблица: в какой версии появилась каждая возможность
func Introductions() map[Capability]Version {
	return map[Capability]Version{
		CapChat:             Classic,
		CapRelativeMovement: Classic,
		CapBlockMetadata:    Alpha1_0_15,
		CapInventory:        Alpha1_0_15,
		CapDayNightCycle:    Alpha1_0_15,
		CapWeather:          Beta1_5_01,
		CapFlattenedBlocks:  Java1_13_2,
		CapPalettedChunks:   Bedrock1_16_100,
	}
}
