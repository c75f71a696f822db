package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/system"
)

// Unavailable replaces any fact that could not be read.
const Unavailable = "n/a"

// Fact is one labelled value.
type Fact struct {
	Name  string
	Value string
}

// FactSource reads point-in-time system facts. It never fails; missing
// values are Unavailable.
type FactSource interface {
	Facts(ctx context.Context) []Fact
}

// SystemFacts reads facts through gopsutil and read-only commands.
type SystemFacts struct {
	runner    runner.Runner
	hostInfo  func(ctx context.Context) (*host.InfoStat, error)
	memInfo   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
	cpuInfo   func(ctx context.Context) ([]cpu.InfoStat, error)
}

// NewSystemFacts creates a SystemFacts using r for command based facts.
func NewSystemFacts(r runner.Runner) *SystemFacts {
	return &SystemFacts{
		runner:    r,
		hostInfo:  host.InfoWithContext,
		memInfo:   mem.VirtualMemoryWithContext,
		diskUsage: disk.UsageWithContext,
		cpuInfo:   cpu.InfoWithContext,
	}
}

// Facts implements FactSource.
func (s *SystemFacts) Facts(ctx context.Context) []Fact {
	hostname, kernel, platform, uptime := Unavailable, Unavailable, Unavailable, Unavailable
	if info, err := s.hostInfo(ctx); err == nil && info != nil {
		hostname = orUnavailable(info.Hostname)
		kernel = orUnavailable(info.KernelVersion)
		platform = orUnavailable(strings.TrimSpace(info.Platform + " " + info.PlatformVersion))
		uptime = (time.Duration(info.Uptime) * time.Second).String()
	}

	cpuModel := Unavailable
	if infos, err := s.cpuInfo(ctx); err == nil && len(infos) > 0 {
		cpuModel = orUnavailable(infos[0].ModelName)
	}

	memory := Unavailable
	if vm, err := s.memInfo(ctx); err == nil && vm != nil {
		memory = fmt.Sprintf("%s / %s (%.0f%%)", formatBytes(vm.Used), formatBytes(vm.Total), vm.UsedPercent)
	}

	rootDisk := Unavailable
	if du, err := s.diskUsage(ctx, "/"); err == nil && du != nil {
		rootDisk = fmt.Sprintf("%s / %s (%.0f%%)", formatBytes(du.Used), formatBytes(du.Total), du.UsedPercent)
	}

	return []Fact{
		{Name: "Hostname", Value: hostname},
		{Name: "Platform", Value: platform},
		{Name: "Kernel", Value: kernel},
		{Name: "Uptime", Value: uptime},
		{Name: "CPU", Value: cpuModel},
		{Name: "Memory", Value: memory},
		{Name: "Root filesystem", Value: rootDisk},
		{Name: "Installed packages", Value: s.count(ctx, system.PacmanList())},
		{Name: "Flatpak applications", Value: s.count(ctx, system.FlatpakList())},
		{Name: "Enabled services", Value: s.count(ctx, system.EnabledServices())},
		{Name: "Failed units", Value: s.count(ctx, system.FailedUnits())},
	}
}

func (s *SystemFacts) count(ctx context.Context, cmd runner.Command) string {
	if s.runner == nil {
		return Unavailable
	}
	res := s.runner.Run(ctx, cmd)
	if !res.Succeeded {
		return Unavailable
	}
	return strconv.Itoa(len(res.Lines()))
}

func orUnavailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unavailable
	}
	return s
}

func formatBytes(b uint64) string {
	return humanize.IBytes(b)
}
