// Package hardware answers the two questions the task catalog asks about
// the machine: which vendor makes a component, and which filesystems of a
// given type are attached. Everything goes through the runner or gopsutil;
// no parsing leaks into task code.
package hardware

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/runner"
)

// Component is a detectable hardware component.
type Component string

const (
	CPU Component = "cpu"
	GPU Component = "gpu"
)

// Vendor names returned by DetectVendor.
const (
	VendorAMD    = "amd"
	VendorIntel  = "intel"
	VendorNvidia = "nvidia"
	VendorOther  = "other"
)

// Device is an attached filesystem.
type Device struct {
	Path   string
	UUID   string
	FSType string
	Label  string
	Size   string
}

// Describe renders the device for prompts and logs.
func (d Device) Describe() string {
	label := d.Label
	if label == "" {
		label = "no label"
	}
	return fmt.Sprintf("%s (%s, %s, %s)", d.UUID, d.Path, label, d.Size)
}

// DeviceLister enumerates attached filesystems of one type.
type DeviceLister interface {
	ListStorageDevices(ctx context.Context, fstype string) ([]Device, error)
}

// VendorDetector reports the vendor of a component.
type VendorDetector interface {
	DetectVendor(ctx context.Context, component Component) string
}

// Probe implements DeviceLister and VendorDetector.
type Probe struct {
	runner  runner.Runner
	cpuInfo func(ctx context.Context) ([]cpu.InfoStat, error)
}

// NewProbe creates a Probe backed by r.
func NewProbe(r runner.Runner) *Probe {
	return &Probe{runner: r, cpuInfo: cpu.InfoWithContext}
}

var pairPattern = regexp.MustCompile(`([A-Z:-]+)="([^"]*)"`)

// ListStorageDevices lists filesystems of type fstype that carry a UUID.
// Multi-device filesystems are reported once.
func (p *Probe) ListStorageDevices(ctx context.Context, fstype string) ([]Device, error) {
	cmd := runner.Cmd("lsblk", "-P", "-o", "PATH,UUID,FSTYPE,LABEL,SIZE").Quiet()
	res := p.runner.Run(ctx, cmd)
	if !res.Succeeded {
		return nil, errors.Wrap(res.Err(cmd), errors.ErrNotFound, "cannot enumerate block devices")
	}
	return parseLsblk(res.Output, fstype), nil
}

func parseLsblk(output, fstype string) []Device {
	var devices []Device
	seen := map[string]bool{}
	for _, line := range strings.Split(output, "\n") {
		fields := map[string]string{}
		for _, m := range pairPattern.FindAllStringSubmatch(line, -1) {
			fields[m[1]] = m[2]
		}
		d := Device{
			Path:   fields["PATH"],
			UUID:   fields["UUID"],
			FSType: fields["FSTYPE"],
			Label:  fields["LABEL"],
			Size:   fields["SIZE"],
		}
		if d.UUID == "" || !strings.EqualFold(d.FSType, fstype) || seen[d.UUID] {
			continue
		}
		seen[d.UUID] = true
		devices = append(devices, d)
	}
	return devices
}

// DetectVendor guesses the vendor of a component. Unknown or undetectable
// hardware is VendorOther.
func (p *Probe) DetectVendor(ctx context.Context, component Component) string {
	switch component {
	case CPU:
		infos, err := p.cpuInfo(ctx)
		if err != nil || len(infos) == 0 {
			return VendorOther
		}
		return cpuVendor(infos[0].VendorID)
	case GPU:
		res := p.runner.Run(ctx, runner.Cmd("lspci", "-mm").Quiet())
		if !res.Succeeded {
			return VendorOther
		}
		return gpuVendor(res.Lines())
	default:
		return VendorOther
	}
}

func cpuVendor(vendorID string) string {
	switch vendorID {
	case "AuthenticAMD":
		return VendorAMD
	case "GenuineIntel":
		return VendorIntel
	default:
		return VendorOther
	}
}

// gpuVendor prefers a discrete card over an integrated one.
func gpuVendor(lspci []string) string {
	found := map[string]bool{}
	for _, line := range lspci {
		if !strings.Contains(line, "VGA compatible controller") &&
			!strings.Contains(line, "3D controller") &&
			!strings.Contains(line, "Display controller") {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "nvidia"):
			found[VendorNvidia] = true
		case strings.Contains(lower, "advanced micro devices"), strings.Contains(lower, "[amd"), strings.Contains(lower, "ati technologies"):
			found[VendorAMD] = true
		case strings.Contains(lower, "intel"):
			found[VendorIntel] = true
		}
	}
	for _, v := range []string{VendorNvidia, VendorAMD, VendorIntel} {
		if found[v] {
			return v
		}
	}
	return VendorOther
}
