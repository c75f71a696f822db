package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/archsetup/pkg/errors"
)

// Selection file keys. Files may use any case; keys are lower-cased on load.
const (
	KeyCPU           = "cpu"
	KeyGPU           = "gpu"
	KeyLaptop        = "laptop"
	KeySteps         = "steps"
	KeyStorageDevice = "storage_device"
)

// LoadSelection reads a declarative selection file. The format follows the
// extension: .toml, .yaml/.yml, anything else is KEY=VALUE.
func LoadSelection(path string) (*koanf.Koanf, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read configuration file %s", path)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrConfigLoad, "configuration file %s is a directory", path)
	}

	raw := koanf.New(".")
	if err := raw.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse configuration file %s", path)
	}

	lowered := make(map[string]interface{}, len(raw.Keys()))
	for key, value := range raw.All() {
		lowered[strings.ToLower(key)] = value
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(lowered, "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "cannot normalize configuration keys")
	}
	return k, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser()
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return DotenvParser()
	}
}

// dotenvParser parses shell style KEY=VALUE files with godotenv.
type dotenvParser struct{}

// DotenvParser returns a koanf parser for KEY=VALUE files.
func DotenvParser() koanf.Parser {
	return dotenvParser{}
}

func (dotenvParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	values, err := godotenv.Unmarshal(string(b))
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

func (dotenvParser) Marshal(m map[string]interface{}) ([]byte, error) {
	values := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			values[strings.ToUpper(k)] = s
		}
	}
	s, err := godotenv.Marshal(values)
	if err != nil {
		return nil, err
	}
	return []byte(s + "\n"), nil
}

// SelectionFile is the TOML shape written by genconfig and --save-config.
type SelectionFile struct {
	CPU           string   `toml:"cpu" comment:"CPU vendor: amd, intel or other"`
	GPU           string   `toml:"gpu" comment:"GPU vendor: amd, intel, nvidia or other"`
	Laptop        bool     `toml:"laptop" comment:"Install laptop power management"`
	Steps         []string `toml:"steps" comment:"Optional steps: directory_structure dotfiles firewall gamedrive essentials coding media gaming browsers office virtualization"`
	StorageDevice string   `toml:"storage_device,omitempty" comment:"Filesystem UUID of the game drive (only used by the gamedrive step)"`
}

// MarshalSelection renders a selection file as TOML.
func MarshalSelection(f SelectionFile) ([]byte, error) {
	if f.Steps == nil {
		f.Steps = []string{}
	}
	b, err := gotoml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot render selection file")
	}
	header := "# archsetup selection file. Run with: sudo archsetup --config <this file>\n\n"
	return append([]byte(header), b...), nil
}

// WriteSelection writes a selection file to path.
func WriteSelection(path string, f SelectionFile) error {
	b, err := MarshalSelection(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot create directory for %s", path)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write %s", path)
	}
	return nil
}
