package entity

import "github.com/nerrad567/qingping-bridge/internal/qingping"

// ForDevice builds every adapter for one device: the full settings
// catalogue plus the read-only sensor channels. Adapters are keyed
// uniquely within the slice.
func ForDevice(dev Device) []Adapter {
	adapters := make([]Adapter, 0,
		len(qingping.NumberSettings)+len(qingping.SelectSettings)+
			len(qingping.SwitchSettings)+len(qingping.TextSettings)+11)

	for _, spec := range qingping.NumberSettings {
		adapters = append(adapters, NewNumber(dev, spec))
	}
	for _, spec := range qingping.SelectSettings {
		adapters = append(adapters, NewSelect(dev, spec))
	}
	for _, spec := range qingping.SwitchSettings {
		adapters = append(adapters, NewSwitch(dev, spec))
	}
	for _, spec := range qingping.TextSettings {
		adapters = append(adapters, NewText(dev, spec))
	}
	for _, s := range Sensors(dev) {
		adapters = append(adapters, s)
	}
	return adapters
}

// Lookup returns the adapter with the given key, or nil.
func Lookup(adapters []Adapter, key string) Adapter {
	for _, a := range adapters {
		if a.Key() == key {
			return a
		}
	}
	return nil
}
