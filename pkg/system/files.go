package system

import (
	"fmt"
	"regexp"
	"strings"
)

// EnablePacmanOptions turns on Color, ParallelDownloads and the multilib
// repository in pacman.conf content.
func EnablePacmanOptions(content string, parallel int) string {
	lines := strings.Split(content, "\n")
	inMultilib := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "#Color":
			lines[i] = "Color"
		case strings.HasPrefix(trimmed, "#ParallelDownloads") || strings.HasPrefix(trimmed, "ParallelDownloads"):
			lines[i] = fmt.Sprintf("ParallelDownloads = %d", parallel)
		case trimmed == "#[multilib]" || trimmed == "[multilib]":
			lines[i] = "[multilib]"
			inMultilib = true
			continue
		case inMultilib && strings.HasPrefix(trimmed, "#Include") && strings.Contains(trimmed, "mirrorlist"):
			lines[i] = strings.TrimPrefix(trimmed, "#")
		}
		if strings.HasPrefix(trimmed, "[") || (strings.HasPrefix(trimmed, "#[") && trimmed != "#[multilib]") {
			inMultilib = false
		}
	}
	return strings.Join(lines, "\n")
}

// NvidiaModules are loaded early for kernel modesetting.
var NvidiaModules = []string{"nvidia", "nvidia_modeset", "nvidia_uvm", "nvidia_drm"}

var mkinitcpioModules = regexp.MustCompile(`(?m)^MODULES=\((.*)\)`)

// AddInitramfsModules adds modules to the MODULES array of mkinitcpio.conf,
// keeping existing entries and order. A missing array is appended.
func AddInitramfsModules(content string, modules ...string) string {
	m := mkinitcpioModules.FindStringSubmatchIndex(content)
	if m == nil {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + "MODULES=(" + strings.Join(modules, " ") + ")\n"
	}

	existing := strings.Fields(content[m[2]:m[3]])
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e] = true
	}
	for _, mod := range modules {
		if !have[mod] {
			existing = append(existing, mod)
			have[mod] = true
		}
	}
	return content[:m[0]] + "MODULES=(" + strings.Join(existing, " ") + ")" + content[m[1]:]
}

var grubCmdline = regexp.MustCompile(`(?m)^GRUB_CMDLINE_LINUX_DEFAULT="([^"]*)"`)

// AddKernelParameters adds parameters to GRUB_CMDLINE_LINUX_DEFAULT.
func AddKernelParameters(content string, params ...string) string {
	m := grubCmdline.FindStringSubmatchIndex(content)
	if m == nil {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + `GRUB_CMDLINE_LINUX_DEFAULT="` + strings.Join(params, " ") + "\"\n"
	}

	existing := strings.Fields(content[m[2]:m[3]])
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e] = true
	}
	for _, p := range params {
		if !have[p] {
			existing = append(existing, p)
			have[p] = true
		}
	}
	return content[:m[0]] + `GRUB_CMDLINE_LINUX_DEFAULT="` + strings.Join(existing, " ") + `"` + content[m[1]:]
}

// FstabEntry is one line of /etc/fstab.
type FstabEntry struct {
	UUID       string
	MountPoint string
	FSType     string
	Options    string
}

func (e FstabEntry) String() string {
	return fmt.Sprintf("UUID=%s\t%s\t%s\t%s\t0 0", e.UUID, e.MountPoint, e.FSType, e.Options)
}

// AddFstabEntry appends e unless its UUID or mount point is already used.
// The second result reports whether content changed.
func AddFstabEntry(content string, e FstabEntry) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if strings.EqualFold(fields[0], "UUID="+e.UUID) || fields[1] == e.MountPoint {
			return content, false
		}
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "# game drive\n" + e.String() + "\n", true
}
