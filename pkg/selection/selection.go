// Package selection holds the user's choices for a run: CPU vendor, GPU
// vendor, laptop flag, optional steps and the game drive. A Selection is
// built once, either from prompts or from a declarative file, and both
// paths go through the same validator in Raw.Build.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
)

// CPUVendor is one of amd, intel or other.
type CPUVendor string

const (
	CPUAMD   CPUVendor = "amd"
	CPUIntel CPUVendor = "intel"
	CPUOther CPUVendor = "other"
)

// CPUVendors lists the accepted CPU vendors in prompt order.
var CPUVendors = []CPUVendor{CPUAMD, CPUIntel, CPUOther}

// GPUVendor is one of amd, intel, nvidia or other.
type GPUVendor string

const (
	GPUAMD    GPUVendor = "amd"
	GPUIntel  GPUVendor = "intel"
	GPUNvidia GPUVendor = "nvidia"
	GPUOther  GPUVendor = "other"
)

// GPUVendors lists the accepted GPU vendors in prompt order.
var GPUVendors = []GPUVendor{GPUAMD, GPUIntel, GPUNvidia, GPUOther}

// Step is an optional unit of the run the user opts into.
type Step string

const (
	StepDirectoryStructure Step = "directory_structure"
	StepDotfiles           Step = "dotfiles"
	StepFirewall           Step = "firewall"
	StepGamedrive          Step = "gamedrive"
	StepEssentials         Step = "essentials"
	StepCoding             Step = "coding"
	StepMedia              Step = "media"
	StepGaming             Step = "gaming"
	StepBrowsers           Step = "browsers"
	StepOffice             Step = "office"
	StepVirtualization     Step = "virtualization"
)

// AllSteps is the closed step vocabulary in canonical order.
var AllSteps = []Step{
	StepDirectoryStructure,
	StepDotfiles,
	StepFirewall,
	StepGamedrive,
	StepEssentials,
	StepCoding,
	StepMedia,
	StepGaming,
	StepBrowsers,
	StepOffice,
	StepVirtualization,
}

// ParseCPU validates a CPU vendor name.
func ParseCPU(s string) (CPUVendor, error) {
	v := CPUVendor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CPUVendors {
		if v == known {
			return v, nil
		}
	}
	return "", errors.Newf(errors.ErrConfigInvalid, "unknown CPU vendor %q (want amd, intel or other)", s).
		WithDetail("cpu", s)
}

// ParseGPU validates a GPU vendor name.
func ParseGPU(s string) (GPUVendor, error) {
	v := GPUVendor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range GPUVendors {
		if v == known {
			return v, nil
		}
	}
	return "", errors.Newf(errors.ErrConfigInvalid, "unknown GPU vendor %q (want amd, intel, nvidia or other)", s).
		WithDetail("gpu", s)
}

// ParseStep validates a step identifier.
func ParseStep(s string) (Step, error) {
	v := Step(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSteps {
		if v == known {
			return v, nil
		}
	}
	return "", errors.Newf(errors.ErrConfigInvalid, "unknown step %q", s).
		WithDetail("step", s)
}

// ParseLaptop accepts yes/no and true/false. Empty means no.
func ParseLaptop(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false", "":
		return false, nil
	default:
		return false, errors.Newf(errors.ErrConfigInvalid, "laptop must be yes or no, got %q", s).
			WithDetail("laptop", s)
	}
}

// Selection is an immutable, validated set of choices.
type Selection struct {
	cpu    CPUVendor
	gpu    GPUVendor
	laptop bool
	steps  map[Step]struct{}
	device string
}

// CPU returns the CPU vendor.
func (s Selection) CPU() CPUVendor { return s.cpu }

// GPU returns the GPU vendor.
func (s Selection) GPU() GPUVendor { return s.gpu }

// Laptop reports whether laptop tasks apply.
func (s Selection) Laptop() bool { return s.laptop }

// Has reports whether step was chosen.
func (s Selection) Has(step Step) bool {
	_, ok := s.steps[step]
	return ok
}

// Steps returns the chosen steps in canonical order.
func (s Selection) Steps() []Step {
	out := make([]Step, 0, len(s.steps))
	for _, step := range AllSteps {
		if s.Has(step) {
			out = append(out, step)
		}
	}
	return out
}

// StorageDevice returns the game drive UUID, or "" when none was chosen.
func (s Selection) StorageDevice() string { return s.device }

// File converts the selection to its declarative file form.
func (s Selection) File() config.SelectionFile {
	steps := make([]string, 0, len(s.steps))
	for _, step := range s.Steps() {
		steps = append(steps, string(step))
	}
	return config.SelectionFile{
		CPU:           string(s.cpu),
		GPU:           string(s.gpu),
		Laptop:        s.laptop,
		Steps:         steps,
		StorageDevice: s.device,
	}
}

func (s Selection) String() string {
	steps := make([]string, 0, len(s.steps))
	for _, step := range s.Steps() {
		steps = append(steps, string(step))
	}
	device := s.device
	if device == "" {
		device = "none"
	}
	return fmt.Sprintf("cpu=%s gpu=%s laptop=%t steps=[%s] device=%s",
		s.cpu, s.gpu, s.laptop, strings.Join(steps, " "), device)
}

// Raw is an unvalidated selection as gathered from a prompt or a file.
type Raw struct {
	CPU           string
	GPU           string
	Laptop        string
	Steps         []string
	StorageDevice string
}

// Build validates r. Every problem is reported as ErrConfigInvalid, a
// startup validation error.
func (r Raw) Build() (Selection, error) {
	if strings.TrimSpace(r.CPU) == "" {
		return Selection{}, errors.New(errors.ErrConfigInvalid, "CPU vendor is required")
	}
	cpu, err := ParseCPU(r.CPU)
	if err != nil {
		return Selection{}, err
	}
	if strings.TrimSpace(r.GPU) == "" {
		return Selection{}, errors.New(errors.ErrConfigInvalid, "GPU vendor is required")
	}
	gpu, err := ParseGPU(r.GPU)
	if err != nil {
		return Selection{}, err
	}
	laptop, err := ParseLaptop(r.Laptop)
	if err != nil {
		return Selection{}, err
	}

	steps := make(map[Step]struct{}, len(r.Steps))
	for _, raw := range r.Steps {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		step, err := ParseStep(raw)
		if err != nil {
			return Selection{}, err
		}
		steps[step] = struct{}{}
	}

	device := strings.TrimSpace(r.StorageDevice)
	if device != "" {
		parsed, err := uuid.Parse(device)
		if err != nil {
			return Selection{}, errors.Wrapf(err, errors.ErrConfigInvalid, "storage device %q is not a filesystem UUID", device).
				WithDetail("storage_device", device)
		}
		device = parsed.String()
	}

	return Selection{cpu: cpu, gpu: gpu, laptop: laptop, steps: steps, device: device}, nil
}

// StepNames returns the step vocabulary as strings, sorted as in AllSteps.
func StepNames() []string {
	out := make([]string, len(AllSteps))
	for i, s := range AllSteps {
		out[i] = string(s)
	}
	return out
}

// splitSteps accepts "a b", "a,b" and mixtures.
func splitSteps(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	sort.Strings(fields)
	return fields
}
