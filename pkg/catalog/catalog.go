// Package catalog declares every task archsetup can run, in execution
// order. The catalog is static: a run only chooses which entries apply.
package catalog

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/system"
	"github.com/arthur-debert/archsetup/pkg/tasks"
)

// Task IDs.
const (
	Mirrors             = "mirrors"
	PacmanConfig        = "pacman-config"
	SystemUpgrade       = "system-upgrade"
	AURHelper           = "aur-helper"
	PreSnapshot         = "pre-snapshot"
	DirectoryStructure  = "directory-structure"
	MicrocodeAMD        = "cpu-microcode-amd"
	MicrocodeIntel      = "cpu-microcode-intel"
	GPUAMD              = "gpu-amd"
	GPUIntel            = "gpu-intel"
	GPUNvidia           = "gpu-nvidia"
	NvidiaInitramfs     = "nvidia-initramfs"
	NvidiaBootloader    = "nvidia-bootloader"
	LaptopPower         = "laptop-power"
	Essentials          = "essentials"
	CoreServices        = "core-services"
	FlatpakRemote       = "flatpak-remote"
	Firewall            = "firewall"
	Gamedrive           = "gamedrive"
	Coding              = "coding"
	Media               = "media"
	Gaming              = "gaming"
	Browsers            = "browsers"
	Office              = "office"
	Virtualization      = "virtualization"
	Dotfiles            = "dotfiles"
	BootloaderRefresh   = "bootloader-refresh"
	RemoveOrphans       = "remove-orphans"
	CleanCache          = "clean-cache"
	PruneBackups        = "prune-backups"
	PostSnapshot        = "post-snapshot"
	InitramfsRegenerate = "initramfs-regenerate"
)

const (
	parallelDownloads = 10
	cacheVersionsKept = 2
	nvidiaModeset     = "nvidia_drm.modeset=1"
)

// Tasks returns the full catalog using pkgs for every install step.
func Tasks(pkgs Packages) []tasks.Task {
	group := func(name string) tasks.Action {
		return func(tc *tasks.Context) error { return installNamed(tc, pkgs, name) }
	}

	return []tasks.Task{
		// preparation
		{ID: Mirrors, Phase: tasks.Preparation, Policy: tasks.Recoverable,
			Description: "Rank pacman mirrors", Action: rankMirrors},
		{ID: PacmanConfig, Phase: tasks.Preparation, Policy: tasks.Recoverable,
			Description: "Enable colour, parallel downloads and multilib", Action: configurePacman},
		{ID: SystemUpgrade, Phase: tasks.Preparation, Policy: tasks.Fatal,
			Description: "Full system upgrade", Action: upgradeSystem},
		{ID: AURHelper, Phase: tasks.Preparation, Policy: tasks.Degrading,
			Description: "Install the AUR helper", Action: installAURHelper},
		{ID: PreSnapshot, Phase: tasks.Preparation, Policy: tasks.Degrading,
			Description: "Snapshot before changes", Action: snapshot("archsetup: before provisioning")},
		{ID: DirectoryStructure, Phase: tasks.Preparation, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepDirectoryStructure),
			Description: "Create home directories", Action: createDirectories},

		// hardware
		{ID: MicrocodeAMD, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireCPU(selection.CPUAMD),
			Description: "AMD microcode", Action: group("microcode-amd")},
		{ID: MicrocodeIntel, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireCPU(selection.CPUIntel),
			Description: "Intel microcode", Action: group("microcode-intel")},
		{ID: GPUAMD, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireGPU(selection.GPUAMD),
			Description: "AMD graphics drivers", Action: group("gpu-amd")},
		{ID: GPUIntel, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireGPU(selection.GPUIntel),
			Description: "Intel graphics drivers", Action: group("gpu-intel")},
		{ID: GPUNvidia, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireGPU(selection.GPUNvidia),
			Description: "NVIDIA graphics drivers", Action: group("gpu-nvidia")},
		{ID: NvidiaInitramfs, Phase: tasks.Hardware, Policy: tasks.Recoverable,
			Gate:        tasks.RequireGPU(selection.GPUNvidia),
			Description: "Load NVIDIA modules early", Action: nvidiaInitramfs},
		{ID: NvidiaBootloader, Phase: tasks.Hardware, Policy: tasks.Recoverable,
			Gate:        tasks.RequireGPU(selection.GPUNvidia),
			Description: "Enable NVIDIA kernel modesetting", Action: nvidiaBootloader},
		{ID: LaptopPower, Phase: tasks.Hardware, Policy: tasks.Degrading,
			Gate:        tasks.RequireLaptop(),
			Description: "Laptop power management", Action: group("laptop")},

		// core-services
		{ID: Essentials, Phase: tasks.CoreServices, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepEssentials),
			Description: "Essential command line tools", Action: group("essentials")},
		{ID: CoreServices, Phase: tasks.CoreServices, Policy: tasks.Degrading,
			Description: "Network, bluetooth, audio and printing", Action: group("core-services")},
		{ID: FlatpakRemote, Phase: tasks.CoreServices, Policy: tasks.Degrading,
			Description: "Flatpak with Flathub", Action: setupFlatpak},
		{ID: Firewall, Phase: tasks.CoreServices, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepFirewall),
			Description: "Firewall", Action: setupFirewall(pkgs)},

		// storage
		{ID: Gamedrive, Phase: tasks.Storage, Policy: tasks.Recoverable,
			Gate:        tasks.RequireStep(selection.StepGamedrive),
			Description: "Mount the game drive", Action: mountGamedrive},

		// applications
		{ID: Coding, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepCoding),
			Description: "Development tools", Action: group("coding")},
		{ID: Media, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepMedia),
			Description: "Media applications", Action: group("media")},
		{ID: Gaming, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepGaming),
			Description: "Gaming", Action: group("gaming")},
		{ID: Browsers, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepBrowsers),
			Description: "Web browsers", Action: group("browsers")},
		{ID: Office, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepOffice),
			Description: "Office suite", Action: group("office")},
		{ID: Virtualization, Phase: tasks.Applications, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepVirtualization),
			Description: "Virtual machines", Action: group("virtualization")},

		// system-configuration
		{ID: Dotfiles, Phase: tasks.SystemConfiguration, Policy: tasks.Degrading,
			Gate:        tasks.RequireStep(selection.StepDotfiles),
			Description: "Fetch dotfiles", Action: fetchDotfiles},
		{ID: BootloaderRefresh, Phase: tasks.SystemConfiguration, Policy: tasks.Degrading,
			Description: "Regenerate the GRUB menu", Action: refreshBootloader},

		// cleanup
		{ID: RemoveOrphans, Phase: tasks.Cleanup, Policy: tasks.Degrading,
			Description: "Remove orphaned packages", Action: removeOrphans},
		{ID: CleanCache, Phase: tasks.Cleanup, Policy: tasks.Degrading,
			Description: "Trim the package cache", Action: cleanCache(pkgs)},
		{ID: PruneBackups, Phase: tasks.Cleanup, Policy: tasks.Degrading,
			Description: "Prune old backups", Action: pruneBackups},

		// finalization
		{ID: PostSnapshot, Phase: tasks.Finalization, Policy: tasks.Degrading,
			Description: "Snapshot after changes", Action: snapshot("archsetup: after provisioning")},
		{ID: InitramfsRegenerate, Phase: tasks.Finalization, Policy: tasks.Degrading,
			Description: "Regenerate initramfs images", Action: regenerateInitramfs},
	}
}

// Registry builds the registry for the embedded package groups.
func Registry() (*tasks.Registry, error) {
	pkgs, err := DefaultPackages()
	if err != nil {
		return nil, err
	}
	return tasks.NewRegistry(Tasks(pkgs)...)
}

func aur(tc *tasks.Context) system.AUR {
	return system.AUR{Helper: tc.Config.AUR.Helper, User: tc.Paths.User().Name}
}

func installNamed(tc *tasks.Context, pkgs Packages, name string) error {
	g, err := pkgs.Group(name)
	if err != nil {
		return err
	}
	return installGroup(tc, g)
}

// installGroup runs every part of g and reports the first failure. Later
// parts still run after an earlier one fails.
func installGroup(tc *tasks.Context, g Group) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if len(g.Pacman) > 0 {
		keep(tc.Install(system.PacmanInstall, g.Pacman...))
	}
	if len(g.AUR) > 0 {
		keep(tc.Install(aur(tc).Install, g.AUR...))
	}
	if len(g.Flatpak) > 0 {
		keep(tc.Install(system.FlatpakInstall, g.Flatpak...))
	}
	for _, unit := range g.Services {
		keep(tc.Exec(system.EnableService(unit)))
	}
	for _, grp := range g.UserGroups {
		keep(tc.Exec(system.AddUserToGroup(tc.Paths.User().Name, grp)))
	}
	return first
}

func rankMirrors(tc *tasks.Context) error {
	if err := tc.Install(system.PacmanInstall, "reflector"); err != nil {
		return err
	}
	mirrorlist := tc.Config.Files.Mirrorlist
	if err := tc.Protect(mirrorlist); err != nil {
		return err
	}
	return tc.Exec(system.Reflector(tc.Config.Mirrors.Countries, tc.Config.Mirrors.Count, mirrorlist))
}

func configurePacman(tc *tasks.Context) error {
	return tc.EditFile(tc.Config.Files.PacmanConf, func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, errors.Newf(errors.ErrNotFound, "%s is empty or missing", tc.Config.Files.PacmanConf)
		}
		return []byte(system.EnablePacmanOptions(string(current), parallelDownloads)), nil
	})
}

func upgradeSystem(tc *tasks.Context) error {
	return tc.Exec(system.PacmanUpgrade())
}

func installAURHelper(tc *tasks.Context) error {
	helper := aur(tc)
	if tc.Run(system.PacmanIsInstalled(helper.Helper)).Succeeded {
		tc.Logger.Info().Str("helper", helper.Helper).Msg("AUR helper already installed")
		return nil
	}
	if err := tc.Install(system.PacmanInstall, "base-devel", "git"); err != nil {
		return err
	}
	dir := filepath.Join(os.TempDir(), "archsetup-"+helper.Helper)
	return tc.ExecAll(
		system.RemoveAll(dir),
		helper.Clone(dir),
		helper.Build(dir),
		system.RemoveAll(dir),
	)
}

func snapshot(description string) tasks.Action {
	return func(tc *tasks.Context) error {
		if !tc.Run(system.PacmanIsInstalled("snapper")).Succeeded {
			return tasks.Skip("snapper is not installed")
		}
		return tc.Exec(system.Snapshot(description))
	}
}

func createDirectories(tc *tasks.Context) error {
	user := tc.Paths.User().Name
	for _, rel := range tc.Config.Directories.Create {
		if err := tc.Exec(system.AsUser(user, system.MakeDir(tc.Paths.UserDir(rel)))); err != nil {
			return err
		}
	}
	return nil
}

func nvidiaInitramfs(tc *tasks.Context) error {
	err := tc.EditFile(tc.Config.Files.Mkinitcpio, func(current []byte) ([]byte, error) {
		return []byte(system.AddInitramfsModules(string(current), system.NvidiaModules...)), nil
	})
	if err != nil {
		return err
	}
	return tc.Exec(system.Mkinitcpio())
}

func nvidiaBootloader(tc *tasks.Context) error {
	err := tc.EditFile(tc.Config.Files.Grub, func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, errors.Newf(errors.ErrNotFound, "%s is empty or missing", tc.Config.Files.Grub)
		}
		return []byte(system.AddKernelParameters(string(current), nvidiaModeset)), nil
	})
	if err != nil {
		return err
	}
	return tc.Exec(system.GrubMkconfig())
}

func setupFlatpak(tc *tasks.Context) error {
	if err := tc.Install(system.PacmanInstall, "flatpak"); err != nil {
		return err
	}
	return tc.Exec(system.FlatpakAddRemote())
}

func setupFirewall(pkgs Packages) tasks.Action {
	return func(tc *tasks.Context) error {
		if err := installNamed(tc, pkgs, "firewall"); err != nil {
			return err
		}
		return tc.ExecAll(system.FirewallDefaults()...)
	}
}

func mountGamedrive(tc *tasks.Context) error {
	device := tc.Selection.StorageDevice()
	if device == "" {
		return tasks.Skip("no storage device selected")
	}

	storage := tc.Config.Storage
	if err := tc.Exec(system.MakeDir(storage.MountPoint)); err != nil {
		return err
	}
	entry := system.FstabEntry{
		UUID:       device,
		MountPoint: storage.MountPoint,
		FSType:     storage.FSType,
		Options:    storage.Options,
	}
	err := tc.EditFile(tc.Config.Files.Fstab, func(current []byte) ([]byte, error) {
		updated, _ := system.AddFstabEntry(string(current), entry)
		return []byte(updated), nil
	})
	if err != nil {
		return err
	}
	return tc.ExecAll(system.MountAll(), system.Chown(tc.Paths.User().Name, storage.MountPoint))
}

func fetchDotfiles(tc *tasks.Context) error {
	repo := tc.Config.Dotfiles.Repo
	if repo == "" {
		return tasks.Skip("no dotfiles repository configured")
	}
	user := tc.Paths.User().Name
	dir := tc.Paths.DotfilesDir()
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return tc.Exec(system.GitPull(user, dir))
	}
	return tc.Exec(system.GitClone(user, repo, tc.Config.Dotfiles.Branch, dir))
}

func refreshBootloader(tc *tasks.Context) error {
	if _, err := os.Stat(tc.Config.Files.Grub); err != nil {
		return tasks.Skip("GRUB is not configured on this system")
	}
	return tc.Exec(system.GrubMkconfig())
}

func removeOrphans(tc *tasks.Context) error {
	// pacman -Qdtq exits 1 when there is nothing to list.
	orphans := tc.Run(system.PacmanOrphans()).Lines()
	if len(orphans) == 0 {
		tc.Logger.Info().Msg("No orphaned packages")
		return nil
	}
	return tc.Exec(system.PacmanRemove(orphans...))
}

func cleanCache(pkgs Packages) tasks.Action {
	return func(tc *tasks.Context) error {
		if err := installNamed(tc, pkgs, "cleanup"); err != nil {
			return err
		}
		return tc.Exec(system.PaccacheClean(cacheVersionsKept))
	}
}

func pruneBackups(tc *tasks.Context) error {
	if tc.Backups == nil {
		return tasks.Skip("no backup store")
	}
	store := tc.Backups
	if tc.DryRun {
		store = store.WithDryRun()
	}
	removed, err := store.PruneAll(tc.Config.Backup.Keep)
	if err != nil {
		return err
	}
	if tc.DryRun {
		tc.Logger.Info().Strs("backups", removed).Int("keep", tc.Config.Backup.Keep).Msg("Dry run, not pruning backups")
		return nil
	}
	tc.Logger.Info().Int("removed", len(removed)).Int("keep", tc.Config.Backup.Keep).Msg("Pruned backups")
	return nil
}

func regenerateInitramfs(tc *tasks.Context) error {
	return tc.Exec(system.Mkinitcpio())
}
