package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/install"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/testutil"
)

func noop(*Context) error { return nil }

func sampleRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		Task{ID: "mirrors", Phase: Preparation, Policy: Recoverable, Action: noop},
		Task{ID: "upgrade", Phase: Preparation, Policy: Fatal, Action: noop},
		Task{ID: "dirs", Phase: Preparation, Policy: Degrading, Gate: RequireStep(selection.StepDirectoryStructure), Action: noop},
		Task{ID: "ucode-amd", Phase: Hardware, Policy: Degrading, Gate: RequireCPU(selection.CPUAMD), Action: noop},
		Task{ID: "gpu-nvidia", Phase: Hardware, Policy: Degrading, Gate: RequireGPU(selection.GPUNvidia), Action: noop},
		Task{ID: "power", Phase: Hardware, Policy: Degrading, Gate: RequireLaptop(), Action: noop},
		Task{ID: "gamedrive", Phase: Storage, Policy: Recoverable, Gate: RequireStep(selection.StepGamedrive), Action: noop},
		Task{ID: "gaming", Phase: Applications, Policy: Degrading, Gate: RequireStep(selection.StepGaming), Action: noop},
		Task{ID: "orphans", Phase: Cleanup, Policy: Degrading, Action: noop},
	)
	require.NoError(t, err)
	return reg
}

func mustSelect(t *testing.T, raw selection.Raw) selection.Selection {
	t.Helper()
	sel, err := raw.Build()
	require.NoError(t, err)
	return sel
}

func ids(ts []Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
	}{
		{name: "missing id", tasks: []Task{{Phase: Preparation, Action: noop}}},
		{name: "duplicate", tasks: []Task{
			{ID: "a", Phase: Preparation, Action: noop},
			{ID: "a", Phase: Hardware, Action: noop},
		}},
		{name: "phase out of order", tasks: []Task{
			{ID: "a", Phase: Hardware, Action: noop},
			{ID: "b", Phase: Preparation, Action: noop},
		}},
		{name: "unknown phase", tasks: []Task{{ID: "a", Phase: Phase(42), Action: noop}}},
		{name: "unknown policy", tasks: []Task{{ID: "a", Phase: Preparation, Policy: Policy(9), Action: noop}}},
		{name: "no action", tasks: []Task{{ID: "a", Phase: Preparation}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tasks...)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
		})
	}
}

func TestResolve_OnlyUnconditional(t *testing.T) {
	reg := sampleRegistry(t)
	sel := mustSelect(t, selection.Raw{CPU: "other", GPU: "other", Laptop: "no"})

	assert.Equal(t, []string{"mirrors", "upgrade", "orphans"}, ids(reg.Resolve(sel)))
}

func TestResolve_Gates(t *testing.T) {
	reg := sampleRegistry(t)
	sel := mustSelect(t, selection.Raw{
		CPU:    "amd",
		GPU:    "nvidia",
		Laptop: "yes",
		Steps:  []string{"gaming", "gamedrive"},
	})

	assert.Equal(t,
		[]string{"mirrors", "upgrade", "ucode-amd", "gpu-nvidia", "power", "gamedrive", "gaming", "orphans"},
		ids(reg.Resolve(sel)))
}

func TestResolve_Deterministic(t *testing.T) {
	reg := sampleRegistry(t)
	a := mustSelect(t, selection.Raw{CPU: "intel", GPU: "amd", Steps: []string{"gaming", "directory_structure"}})
	b := mustSelect(t, selection.Raw{CPU: "intel", GPU: "amd", Steps: []string{"directory_structure", "gaming"}})

	assert.Equal(t, ids(reg.Resolve(a)), ids(reg.Resolve(a)))
	assert.Equal(t, ids(reg.Resolve(a)), ids(reg.Resolve(b)))
}

func TestResolve_StepMembership(t *testing.T) {
	reg := sampleRegistry(t)
	for _, step := range selection.AllSteps {
		t.Run(string(step), func(t *testing.T) {
			with := mustSelect(t, selection.Raw{CPU: "other", GPU: "other", Steps: []string{string(step)}})
			without := mustSelect(t, selection.Raw{CPU: "other", GPU: "other"})

			for _, task := range reg.Tasks() {
				if task.Gate.Step != step {
					continue
				}
				assert.Contains(t, ids(reg.Resolve(with)), task.ID)
				assert.NotContains(t, ids(reg.Resolve(without)), task.ID)
			}
		})
	}
}

func TestPlan_ListsEveryPhase(t *testing.T) {
	reg := sampleRegistry(t)
	sel := mustSelect(t, selection.Raw{CPU: "other", GPU: "other"})

	plan := reg.Plan(sel)
	require.Len(t, plan, len(Phases))
	assert.Equal(t, Preparation, plan[0].Phase)
	assert.Equal(t, []string{"mirrors", "upgrade"}, ids(plan[0].Tasks))
	assert.Empty(t, plan[1].Tasks)
	assert.Equal(t, []string{"orphans"}, ids(plan[6].Tasks))
}

func TestGate(t *testing.T) {
	g := All(RequireGPU(selection.GPUNvidia), RequireLaptop())
	assert.Equal(t, "gpu=nvidia laptop", g.String())
	assert.False(t, g.Unconditional())
	assert.True(t, Always().Unconditional())
	assert.Equal(t, "always", Always().String())

	nvidiaLaptop := mustSelect(t, selection.Raw{CPU: "amd", GPU: "nvidia", Laptop: "yes"})
	nvidiaDesktop := mustSelect(t, selection.Raw{CPU: "amd", GPU: "nvidia", Laptop: "no"})
	assert.True(t, g.Allows(nvidiaLaptop))
	assert.False(t, g.Allows(nvidiaDesktop))
}

func TestPhaseAndPolicyNames(t *testing.T) {
	assert.Equal(t, "core-services", CoreServices.String())
	assert.Equal(t, "system-configuration", SystemConfiguration.String())
	assert.Equal(t, "recoverable", Recoverable.String())
	assert.Equal(t, "phase(99)", Phase(99).String())
}

func newContext(t *testing.T, r runner.Runner) (*Context, *backup.Store) {
	t.Helper()
	logger, _ := testutil.NewLogger()
	store := backup.New(backup.Options{Root: filepath.Join(t.TempDir(), "backups"), Logger: logger})
	return &Context{
		Ctx:     context.Background(),
		Runner:  r,
		Logger:  logger,
		Journal: NewJournal(store),
		InstallOptions: install.Options{
			MaxRetries: 2,
			Sleep:      func(context.Context, time.Duration) error { return nil },
		},
	}, store
}

func TestContextExec(t *testing.T) {
	fake := runner.NewFake()
	fake.On("false", runner.Failure(1, "nope"))
	tc, _ := newContext(t, fake)

	require.NoError(t, tc.Exec(runner.Cmd("true")))

	err := tc.ExecAll(runner.Cmd("true"), runner.Cmd("false"), runner.Cmd("never"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTaskExecute))
	assert.Equal(t, 0, fake.Count("never"))
}

func TestContextInstall(t *testing.T) {
	fake := runner.NewFake()
	fake.On("pacman -S bad", runner.Failure(1, "target not found"))
	tc, _ := newContext(t, fake)

	cmd := func(target string) runner.Command { return runner.Cmd("pacman", "-S", target) }

	require.NoError(t, tc.Install(cmd, "good"))

	err := tc.Install(cmd, "good", "bad")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstallFailed))
	assert.Equal(t, 2, fake.Count("pacman -S bad"))
}

func TestEditFile_RestoresByteIdentical(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateFile(t, dir, "fstab", "UUID=root / btrfs defaults 0 0\n")
	tc, _ := newContext(t, runner.NewFake())

	err := tc.EditFile(path, func(current []byte) ([]byte, error) {
		return append(current, []byte("UUID=games /mnt/games btrfs defaults 0 0\n")...), nil
	})
	require.NoError(t, err)
	assert.Contains(t, testutil.ReadFile(t, path), "/mnt/games")

	logger, _ := testutil.NewLogger()
	require.NoError(t, tc.Journal.RestoreAll(logger))
	testutil.AssertFileContent(t, path, "UUID=root / btrfs defaults 0 0\n")
}

func TestEditFile_ProtectsOnce(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateFile(t, dir, "grub", "A\n")
	tc, _ := newContext(t, runner.NewFake())

	appendLine := func(line string) func([]byte) ([]byte, error) {
		return func(current []byte) ([]byte, error) { return append(current, []byte(line)...), nil }
	}
	require.NoError(t, tc.EditFile(path, appendLine("B\n")))
	require.NoError(t, tc.EditFile(path, appendLine("C\n")))
	assert.Equal(t, 1, tc.Journal.Len())

	logger, _ := testutil.NewLogger()
	require.NoError(t, tc.Journal.RestoreAll(logger))
	testutil.AssertFileContent(t, path, "A\n")
}

func TestEditFile_CreatesMissingAndRestoreRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.conf")
	tc, _ := newContext(t, runner.NewFake())

	require.NoError(t, tc.EditFile(path, func([]byte) ([]byte, error) { return []byte("x\n"), nil }))
	assert.True(t, testutil.FileExists(t, path))

	logger, _ := testutil.NewLogger()
	require.NoError(t, tc.Journal.RestoreAll(logger))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEditFile_DryRun(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateFile(t, dir, "pacman.conf", "#Color\n")
	tc, store := newContext(t, runner.NewFake())
	tc.DryRun = true

	require.NoError(t, tc.EditFile(path, func([]byte) ([]byte, error) { return []byte("Color\n"), nil }))
	testutil.AssertFileContent(t, path, "#Color\n")
	assert.Zero(t, tc.Journal.Len())

	records, err := store.List(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProtect_WithoutJournal(t *testing.T) {
	tc, _ := newContext(t, runner.NewFake())
	tc.Journal = nil

	err := tc.Protect("/etc/fstab")
	assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIntegrity))
}

func TestSkip(t *testing.T) {
	err := Skip("no device")
	assert.True(t, IsSkip(err))
	assert.False(t, IsSkip(errors.New(errors.ErrTaskExecute, "boom")))
	assert.False(t, IsSkip(nil))
}
