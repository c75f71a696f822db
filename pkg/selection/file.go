package selection

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/archsetup/pkg/config"
)

// FromConfig reads a loaded selection file into a Raw. Steps may be a list
// or a space or comma separated string; laptop may be a bool or yes/no.
func FromConfig(k *koanf.Koanf) Raw {
	raw := Raw{
		CPU:           k.String(config.KeyCPU),
		GPU:           k.String(config.KeyGPU),
		StorageDevice: k.String(config.KeyStorageDevice),
	}

	switch v := k.Get(config.KeyLaptop).(type) {
	case nil:
	case bool:
		raw.Laptop = fmt.Sprint(v)
	default:
		raw.Laptop = k.String(config.KeyLaptop)
	}

	switch v := k.Get(config.KeySteps).(type) {
	case nil:
	case string:
		raw.Steps = splitSteps(v)
	case []interface{}:
		for _, item := range v {
			raw.Steps = append(raw.Steps, strings.TrimSpace(fmt.Sprint(item)))
		}
	case []string:
		raw.Steps = append(raw.Steps, v...)
	default:
		raw.Steps = splitSteps(k.String(config.KeySteps))
	}
	return raw
}

// Load reads and validates a declarative selection file. The storage
// device is not checked against attached hardware here; see ConfirmDevice.
func Load(path string) (Selection, Raw, error) {
	k, err := config.LoadSelection(path)
	if err != nil {
		return Selection{}, Raw{}, err
	}
	raw := FromConfig(k)
	sel, err := raw.Build()
	if err != nil {
		return Selection{}, raw, err
	}
	return sel, raw, nil
}
