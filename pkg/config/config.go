package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/archsetup/pkg/errors"
)

// EnvPrefix prefixes policy overrides. Sections and keys are separated by a
// double underscore: ARCHSETUP_INSTALL__MAX_RETRIES=5.
const EnvPrefix = "ARCHSETUP_"

// Config is the policy configuration.
type Config struct {
	Install     Install     `koanf:"install"`
	Backup      Backup      `koanf:"backup"`
	Prompt      Prompt      `koanf:"prompt"`
	Network     Network     `koanf:"network"`
	Mirrors     Mirrors     `koanf:"mirrors"`
	AUR         AUR         `koanf:"aur"`
	Dotfiles    Dotfiles    `koanf:"dotfiles"`
	Storage     Storage     `koanf:"storage"`
	Directories Directories `koanf:"directories"`
	Files       Files       `koanf:"files"`
}

type Install struct {
	MaxRetries int           `koanf:"max_retries"`
	Backoff    time.Duration `koanf:"backoff"`
}

type Backup struct {
	Keep int `koanf:"keep"`
}

type Prompt struct {
	ConfirmTimeout time.Duration `koanf:"confirm_timeout"`
}

type Network struct {
	CheckHost string `koanf:"check_host"`
}

type Mirrors struct {
	Countries []string `koanf:"countries"`
	Count     int      `koanf:"count"`
}

type AUR struct {
	Helper string `koanf:"helper"`
}

type Dotfiles struct {
	Repo   string `koanf:"repo"`
	Branch string `koanf:"branch"`
}

type Storage struct {
	FSType     string `koanf:"fstype"`
	MountPoint string `koanf:"mount_point"`
	Options    string `koanf:"options"`
}

type Directories struct {
	Create []string `koanf:"create"`
}

// Files are the shared system files archsetup rewrites. They are
// configurable so tests and chroot installs can point elsewhere.
type Files struct {
	PacmanConf string `koanf:"pacman_conf"`
	Mirrorlist string `koanf:"mirrorlist"`
	Mkinitcpio string `koanf:"mkinitcpio"`
	Grub       string `koanf:"grub"`
	Fstab      string `koanf:"fstab"`
	OSRelease  string `koanf:"os_release"`
}

// LoadOptions controls where policy configuration comes from.
type LoadOptions struct {
	// PolicyFile is the optional user policy file. Missing is fine.
	PolicyFile string
	// SkipEnv ignores ARCHSETUP_* variables.
	SkipEnv bool
}

// Load builds the policy configuration: defaults, policy file, environment.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to load defaults")
	}

	// 2. User policy file if it exists
	if opts.PolicyFile != "" {
		if _, err := os.Stat(opts.PolicyFile); err == nil {
			if err := k.Load(file.Provider(opts.PolicyFile), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load policy config from %s", opts.PolicyFile)
			}
		}
	}

	// 3. Environment overrides
	if !opts.SkipEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
		}
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ARCHSETUP_INSTALL__MAX_RETRIES to install.max_retries.
// Variables without a section separator are not policy keys.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

// Validate rejects values the pipeline cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Install.MaxRetries < 1:
		return errors.Newf(errors.ErrConfigInvalid, "install.max_retries must be at least 1, got %d", c.Install.MaxRetries)
	case c.Install.Backoff < 0:
		return errors.Newf(errors.ErrConfigInvalid, "install.backoff must not be negative, got %s", c.Install.Backoff)
	case c.Backup.Keep < 1:
		return errors.Newf(errors.ErrConfigInvalid, "backup.keep must be at least 1, got %d", c.Backup.Keep)
	case c.Prompt.ConfirmTimeout <= 0:
		return errors.Newf(errors.ErrConfigInvalid, "prompt.confirm_timeout must be positive, got %s", c.Prompt.ConfirmTimeout)
	case c.AUR.Helper != "paru" && c.AUR.Helper != "yay":
		return errors.Newf(errors.ErrConfigInvalid, "aur.helper must be paru or yay, got %q", c.AUR.Helper)
	}
	return nil
}

// String is used in debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("retries=%d backoff=%s keep=%d aur=%s", c.Install.MaxRetries, c.Install.Backoff, c.Backup.Keep, c.AUR.Helper)
}
