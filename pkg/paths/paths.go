package paths

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/archsetup/pkg/errors"
)

// Environment variable names
const (
	// EnvSudoUser names the user that invoked sudo
	EnvSudoUser = "SUDO_USER"

	// EnvStateDir overrides the XDG state directory for archsetup
	EnvStateDir = "ARCHSETUP_STATE_DIR"

	// EnvDataDir overrides the XDG data directory for archsetup
	EnvDataDir = "ARCHSETUP_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for archsetup
	EnvConfigDir = "ARCHSETUP_CONFIG_DIR"
)

// Fixed names inside the archsetup directories. These are not
// user-configurable.
const (
	AppDirName       = "archsetup"
	LogFileName      = "archsetup.log"
	ReportFileName   = "report.md"
	BackupDirName    = "backups"
	PolicyConfigFile = "config.toml"
	DotfilesDirName  = ".dotfiles"
)

// User is the account that receives user-level configuration.
type User struct {
	Name string
	UID  int
	GID  int
	Home string
}

// Lookup abstracts the password database so tests can fake it.
type Lookup func(name string) (*user.User, error)

// ResolveUser determines the target user: SUDO_USER when set, otherwise the
// current user.
func ResolveUser(getenv func(string) string, lookup Lookup) (User, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if lookup == nil {
		lookup = user.Lookup
	}

	name := getenv(EnvSudoUser)
	var u *user.User
	var err error
	if name != "" {
		u, err = lookup(name)
	} else {
		u, err = user.Current()
	}
	if err != nil {
		return User{}, errors.Wrap(err, errors.ErrUserUnknown, "cannot determine target user")
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return User{}, errors.Wrapf(err, errors.ErrUserUnknown, "invalid uid %q for %s", u.Uid, u.Username)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return User{}, errors.Wrapf(err, errors.ErrUserUnknown, "invalid gid %q for %s", u.Gid, u.Username)
	}
	if u.HomeDir == "" {
		return User{}, errors.Newf(errors.ErrUserUnknown, "user %s has no home directory", u.Username)
	}

	return User{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// Paths provides the per-user locations archsetup writes to.
type Paths struct {
	user      User
	stateDir  string
	dataDir   string
	configDir string
}

// New builds the paths for u. getenv may be nil.
func New(u User, getenv func(string) string) *Paths {
	if getenv == nil {
		getenv = os.Getenv
	}

	// xdg reads the environment of the current process, which under sudo is
	// root's. Only trust it when the target user is the current user.
	sameUser := u.UID == os.Getuid()

	p := &Paths{user: u}
	p.stateDir = pick(getenv(EnvStateDir), sameUser, xdg.StateHome, filepath.Join(u.Home, ".local", "state"))
	p.dataDir = pick(getenv(EnvDataDir), sameUser, xdg.DataHome, filepath.Join(u.Home, ".local", "share"))
	p.configDir = pick(getenv(EnvConfigDir), sameUser, xdg.ConfigHome, filepath.Join(u.Home, ".config"))
	return p
}

func pick(override string, sameUser bool, xdgDir, homeDir string) string {
	if override != "" {
		return override
	}
	if sameUser && xdgDir != "" {
		return filepath.Join(xdgDir, AppDirName)
	}
	return filepath.Join(homeDir, AppDirName)
}

// User returns the target user.
func (p *Paths) User() User { return p.user }

// Home returns the target user's home directory.
func (p *Paths) Home() string { return p.user.Home }

// StateDir holds the log and the report.
func (p *Paths) StateDir() string { return p.stateDir }

// DataDir holds configuration backups.
func (p *Paths) DataDir() string { return p.dataDir }

// ConfigDir holds the optional policy configuration file.
func (p *Paths) ConfigDir() string { return p.configDir }

// LogFilePath returns the append-only run log.
func (p *Paths) LogFilePath() string { return filepath.Join(p.stateDir, LogFileName) }

// ReportPath returns the summary report written at the end of a run.
func (p *Paths) ReportPath() string { return filepath.Join(p.stateDir, ReportFileName) }

// BackupDir returns the backup root.
func (p *Paths) BackupDir() string { return filepath.Join(p.dataDir, BackupDirName) }

// PolicyConfigPath returns the optional policy override file.
func (p *Paths) PolicyConfigPath() string { return filepath.Join(p.configDir, PolicyConfigFile) }

// DotfilesDir returns where the user's dotfiles repository is cloned.
func (p *Paths) DotfilesDir() string { return filepath.Join(p.user.Home, DotfilesDirName) }

// UserDir joins rel onto the target user's home.
func (p *Paths) UserDir(rel string) string { return filepath.Join(p.user.Home, rel) }

// String is used in debug logging.
func (p *Paths) String() string {
	return fmt.Sprintf("user=%s state=%s data=%s config=%s", p.user.Name, p.stateDir, p.dataDir, p.configDir)
}
