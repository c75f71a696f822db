package system

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/runner"
)

// AsUser runs cmd as user with a login-like environment.
func AsUser(user string, cmd runner.Command) runner.Command {
	args := append([]string{"-u", user, "-H", "--", cmd.Name}, cmd.Args...)
	wrapped := runner.Cmd("sudo", args...)
	wrapped.Dir = cmd.Dir
	wrapped.Env = cmd.Env
	wrapped.Silent = cmd.Silent
	wrapped.Stdin = cmd.Stdin
	return wrapped
}

// PacmanInstall installs one repository package.
func PacmanInstall(pkg string) runner.Command {
	return runner.Cmd("pacman", "-S", "--needed", "--noconfirm", pkg)
}

// PacmanUpgrade refreshes the databases and upgrades everything.
func PacmanUpgrade() runner.Command {
	return runner.Cmd("pacman", "-Syu", "--noconfirm")
}

// PacmanIsInstalled exits zero when pkg is installed.
func PacmanIsInstalled(pkg string) runner.Command {
	return runner.Cmd("pacman", "-Qi", pkg).Quiet()
}

// PacmanOrphans lists packages nothing depends on.
func PacmanOrphans() runner.Command {
	return runner.Cmd("pacman", "-Qdtq").Quiet()
}

// PacmanRemove removes packages with their unused dependencies.
func PacmanRemove(pkgs ...string) runner.Command {
	return runner.Cmd("pacman", append([]string{"-Rns", "--noconfirm"}, pkgs...)...)
}

// PacmanList lists installed packages.
func PacmanList() runner.Command {
	return runner.Cmd("pacman", "-Qq").Quiet()
}

// PaccacheClean keeps the last keep versions of each cached package.
func PaccacheClean(keep int) runner.Command {
	return runner.Cmd("paccache", "-r", "-k", strconv.Itoa(keep))
}

// AUR drives an AUR helper as the target user.
type AUR struct {
	Helper string
	User   string
}

// Install installs one AUR package.
func (a AUR) Install(pkg string) runner.Command {
	return AsUser(a.User, runner.Cmd(a.Helper, "-S", "--needed", "--noconfirm", pkg))
}

// RepoURL is the AUR git URL of the prebuilt helper package.
func (a AUR) RepoURL() string {
	return fmt.Sprintf("https://aur.archlinux.org/%s-bin.git", a.Helper)
}

// Clone fetches the helper's package build into dir.
func (a AUR) Clone(dir string) runner.Command {
	return AsUser(a.User, runner.Cmd("git", "clone", "--depth", "1", a.RepoURL(), dir))
}

// Build builds and installs the helper from dir.
func (a AUR) Build(dir string) runner.Command {
	cmd := runner.Cmd("makepkg", "-si", "--noconfirm")
	cmd.Dir = dir
	return AsUser(a.User, cmd)
}

// FlathubRemote is the remote applications are installed from.
const FlathubRemote = "flathub"

// FlatpakAddRemote registers Flathub system wide.
func FlatpakAddRemote() runner.Command {
	return runner.Cmd("flatpak", "remote-add", "--if-not-exists", FlathubRemote,
		"https://dl.flathub.org/repo/flathub.flatpakrepo")
}

// FlatpakInstall installs one application from Flathub.
func FlatpakInstall(appID string) runner.Command {
	return runner.Cmd("flatpak", "install", "-y", "--noninteractive", FlathubRemote, appID)
}

// FlatpakList lists installed applications.
func FlatpakList() runner.Command {
	return runner.Cmd("flatpak", "list", "--app", "--columns=application").Quiet()
}

// EnableService enables and starts a systemd unit.
func EnableService(unit string) runner.Command {
	return runner.Cmd("systemctl", "enable", "--now", unit)
}

// EnabledServices lists enabled unit files.
func EnabledServices() runner.Command {
	return runner.Cmd("systemctl", "list-unit-files", "--state=enabled", "--no-legend", "--plain").Quiet()
}

// FailedUnits lists failed units.
func FailedUnits() runner.Command {
	return runner.Cmd("systemctl", "--failed", "--no-legend", "--plain").Quiet()
}

// AddUserToGroup appends user to group.
func AddUserToGroup(user, group string) runner.Command {
	return runner.Cmd("usermod", "-aG", group, user)
}

// Reflector ranks mirrors and writes them to output.
func Reflector(countries []string, count int, output string) runner.Command {
	args := []string{"--protocol", "https", "--latest", strconv.Itoa(count), "--sort", "rate", "--save", output}
	if len(countries) > 0 {
		args = append([]string{"--country", strings.Join(countries, ",")}, args...)
	}
	return runner.Cmd("reflector", args...)
}

// GrubConfig is the generated GRUB menu.
const GrubConfig = "/boot/grub/grub.cfg"

// GrubMkconfig regenerates the GRUB menu.
func GrubMkconfig() runner.Command {
	return runner.Cmd("grub-mkconfig", "-o", GrubConfig)
}

// Mkinitcpio regenerates every initramfs preset.
func Mkinitcpio() runner.Command {
	return runner.Cmd("mkinitcpio", "-P")
}

// Snapshot creates a snapper snapshot of the root config.
func Snapshot(description string) runner.Command {
	return runner.Cmd("snapper", "-c", "root", "create", "--description", description)
}

// FirewallDefaults sets up ufw with deny-in, allow-out and enables it.
func FirewallDefaults() []runner.Command {
	return []runner.Command{
		runner.Cmd("ufw", "default", "deny", "incoming"),
		runner.Cmd("ufw", "default", "allow", "outgoing"),
		runner.Cmd("ufw", "--force", "enable"),
		EnableService("ufw"),
	}
}

// MakeDir creates dir and its parents.
func MakeDir(dir string) runner.Command {
	return runner.Cmd("mkdir", "-p", dir)
}

// RemoveAll deletes path recursively.
func RemoveAll(path string) runner.Command {
	return runner.Cmd("rm", "-rf", path)
}

// MountAll mounts everything in fstab.
func MountAll() runner.Command {
	return runner.Cmd("mount", "-a")
}

// Chown gives path to user, recursively.
func Chown(user, path string) runner.Command {
	return runner.Cmd("chown", "-R", user+":"+user, path)
}

// GitClone clones repo at branch into dir as user.
func GitClone(user, repo, branch, dir string) runner.Command {
	return AsUser(user, runner.Cmd("git", "clone", "--branch", branch, repo, dir))
}

// GitPull fast-forwards the checkout at dir as user.
func GitPull(user, dir string) runner.Command {
	return AsUser(user, runner.Cmd("git", "-C", dir, "pull", "--ff-only"))
}

// Ping checks that host answers.
func Ping(host string) runner.Command {
	return runner.Cmd("ping", "-c", "1", "-W", "5", host).Quiet()
}

// Reboot restarts the machine.
func Reboot() runner.Command {
	return runner.Cmd("systemctl", "reboot")
}
