package selection

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/hardware"
)

// Prompter asks the user questions. Implementations live in pkg/ui/prompt.
type Prompter interface {
	Select(question string, options []string, def string) (string, error)
	MultiSelect(question string, options []string) ([]string, error)
	Confirm(question string, def bool) (bool, error)
}

// Sources bundles the hardware capabilities used while building a
// selection. Detector is optional and only supplies prompt defaults.
type Sources struct {
	Lister   hardware.DeviceLister
	Detector hardware.VendorDetector
	FSType   string
	Logger   zerolog.Logger
}

// Elicit builds a selection interactively. An unanswered checklist means
// no optional steps.
func Elicit(ctx context.Context, p Prompter, src Sources) (Selection, error) {
	cpuDefault, gpuDefault := string(CPUOther), string(GPUOther)
	if src.Detector != nil {
		cpuDefault = src.Detector.DetectVendor(ctx, hardware.CPU)
		gpuDefault = src.Detector.DetectVendor(ctx, hardware.GPU)
	}

	var raw Raw
	var err error

	cpuOptions := make([]string, len(CPUVendors))
	for i, v := range CPUVendors {
		cpuOptions[i] = string(v)
	}
	if raw.CPU, err = p.Select("Select your CPU vendor", cpuOptions, cpuDefault); err != nil {
		return Selection{}, promptErr(err)
	}

	gpuOptions := make([]string, len(GPUVendors))
	for i, v := range GPUVendors {
		gpuOptions[i] = string(v)
	}
	if raw.GPU, err = p.Select("Select your GPU vendor", gpuOptions, gpuDefault); err != nil {
		return Selection{}, promptErr(err)
	}

	laptop, err := p.Confirm("Is this a laptop?", false)
	if err != nil {
		return Selection{}, promptErr(err)
	}
	raw.Laptop = "no"
	if laptop {
		raw.Laptop = "yes"
	}

	if raw.Steps, err = p.MultiSelect("Select optional steps", StepNames()); err != nil {
		return Selection{}, promptErr(err)
	}

	sel, err := raw.Build()
	if err != nil {
		return Selection{}, err
	}
	if !sel.Has(StepGamedrive) {
		return sel, nil
	}

	device, err := ChooseDevice(ctx, src, p)
	if err != nil {
		return Selection{}, err
	}
	return sel.WithStorageDevice(device)
}

// FromFile builds a selection from a declarative file. A configured device
// is checked against attached filesystems; when none is configured the
// sole candidate is picked.
func FromFile(ctx context.Context, path string, src Sources) (Selection, error) {
	sel, _, err := Load(path)
	if err != nil {
		return Selection{}, err
	}
	if !sel.Has(StepGamedrive) {
		return sel, nil
	}
	return sel.WithStorageDevice(ConfirmDevice(ctx, src, sel.StorageDevice()))
}

// WithStorageDevice returns a copy of s using device.
func (s Selection) WithStorageDevice(device string) (Selection, error) {
	raw := Raw{
		CPU:           string(s.cpu),
		GPU:           string(s.gpu),
		Laptop:        "no",
		StorageDevice: device,
	}
	if s.laptop {
		raw.Laptop = "yes"
	}
	for _, step := range s.Steps() {
		raw.Steps = append(raw.Steps, string(step))
	}
	return raw.Build()
}

// ChooseDevice picks the game drive interactively: none with a warning when
// no candidate exists, the only candidate when there is one, otherwise the
// user chooses.
func ChooseDevice(ctx context.Context, src Sources, p Prompter) (string, error) {
	devices := listDevices(ctx, src)
	switch len(devices) {
	case 0:
		src.Logger.Warn().Str("fstype", src.FSType).Msg("No storage device found, the game drive will be skipped")
		return "", nil
	case 1:
		src.Logger.Info().Str("device", devices[0].Describe()).Msg("Using the only storage device found")
		return devices[0].UUID, nil
	}

	options := make([]string, len(devices))
	byLabel := make(map[string]string, len(devices))
	for i, d := range devices {
		options[i] = d.Describe()
		byLabel[options[i]] = d.UUID
	}
	answer, err := p.Select("Select the game drive", options, options[0])
	if err != nil {
		return "", promptErr(err)
	}
	device, ok := byLabel[answer]
	if !ok {
		return "", errors.Newf(errors.ErrInternal, "unknown device %q", answer)
	}
	return device, nil
}

// ConfirmDevice validates a configured game drive without prompting.
func ConfirmDevice(ctx context.Context, src Sources, configured string) string {
	devices := listDevices(ctx, src)

	if configured != "" {
		for _, d := range devices {
			if d.UUID == configured {
				return configured
			}
		}
		src.Logger.Warn().Str("device", configured).Str("fstype", src.FSType).
			Msg("Configured storage device is not attached, the game drive will be skipped")
		return ""
	}

	switch len(devices) {
	case 0:
		src.Logger.Warn().Str("fstype", src.FSType).Msg("No storage device found, the game drive will be skipped")
		return ""
	case 1:
		src.Logger.Info().Str("device", devices[0].Describe()).Msg("Using the only storage device found")
		return devices[0].UUID
	default:
		src.Logger.Warn().Int("candidates", len(devices)).
			Msg("Several storage devices found and none configured, the game drive will be skipped")
		return ""
	}
}

func listDevices(ctx context.Context, src Sources) []hardware.Device {
	if src.Lister == nil {
		return nil
	}
	devices, err := src.Lister.ListStorageDevices(ctx, src.FSType)
	if err != nil {
		src.Logger.Warn().Err(err).Msg("Cannot enumerate storage devices")
		return nil
	}
	return devices
}

func promptErr(err error) error {
	if errors.GetErrorCode(err) != errors.ErrUnknown {
		return err
	}
	return errors.Wrap(err, errors.ErrNotInteractive, "prompt failed")
}
