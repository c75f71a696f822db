package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/catalog"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/hardware"
	"github.com/arthur-debert/archsetup/pkg/install"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/tasks"
	"github.com/arthur-debert/archsetup/pkg/testutil"
)

type harness struct {
	orch   *Orchestrator
	result *RunResult
	fake   *runner.Fake
	store  *backup.Store
	buf    *testutil.LogBuffer
	ran    []string
}

func newHarness(t *testing.T, sel selection.Selection, mutate func(*Options)) *harness {
	t.Helper()
	result := NewRunResult("test-run", nil)
	logger, buf := testutil.NewLogger(result)
	fake := runner.NewFake()
	store := backup.New(backup.Options{Root: filepath.Join(t.TempDir(), "backups"), Logger: logger})

	opts := Options{
		Runner:    fake,
		Logger:    logger,
		Result:    result,
		Selection: sel,
		Backups:   store,
		Install: install.Options{
			MaxRetries: 1,
			Sleep:      func(context.Context, time.Duration) error { return nil },
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &harness{orch: New(opts), result: result, fake: fake, store: store, buf: buf}
}

func emptySelection(t *testing.T) selection.Selection {
	t.Helper()
	sel, err := selection.Raw{CPU: "other", GPU: "other"}.Build()
	require.NoError(t, err)
	return sel
}

func (h *harness) task(id string, phase tasks.Phase, policy tasks.Policy, action tasks.Action) tasks.Task {
	return tasks.Task{ID: id, Phase: phase, Policy: policy, Action: func(tc *tasks.Context) error {
		h.ran = append(h.ran, id)
		return action(tc)
	}}
}

func ok(*tasks.Context) error { return nil }

func execFalse(tc *tasks.Context) error {
	return tc.Exec(runner.Cmd("false"))
}

func TestRun_AllSucceed(t *testing.T) {
	h := newHarness(t, emptySelection(t), nil)
	ts := []tasks.Task{
		h.task("a", tasks.Preparation, tasks.Fatal, ok),
		h.task("b", tasks.Hardware, tasks.Degrading, ok),
	}

	state := h.orch.Run(context.Background(), ts)

	assert.Equal(t, Completed, state)
	assert.Equal(t, Completed, h.result.State())
	assert.Equal(t, []string{"a", "b"}, h.ran)
	assert.Equal(t, 0, h.result.Errors())
	assert.Equal(t, 2, h.result.Count(Succeeded))
	assert.Equal(t, tasks.Hardware, h.result.Phase())
	assert.False(t, h.result.StartedAt().IsZero())
}

func TestRun_FatalHaltsBeforeNextPhase(t *testing.T) {
	h := newHarness(t, emptySelection(t), nil)
	h.fake.On("false", runner.Failure(1, ""))
	ts := []tasks.Task{
		h.task("warn", tasks.Preparation, tasks.Degrading, func(tc *tasks.Context) error {
			tc.Logger.Warn().Msg("slow mirror")
			return nil
		}),
		h.task("upgrade", tasks.Preparation, tasks.Fatal, execFalse),
		h.task("same-phase", tasks.Preparation, tasks.Degrading, ok),
		h.task("next-phase", tasks.Hardware, tasks.Degrading, ok),
	}

	state := h.orch.Run(context.Background(), ts)

	assert.Equal(t, Aborted, state)
	assert.Equal(t, "upgrade", h.result.AbortedTask())
	assert.Equal(t, []string{"warn", "upgrade"}, h.ran)
	assert.Equal(t, 2, h.result.Errors(), "task failure and abort line")
	assert.Equal(t, 1, h.result.Warnings())
	assert.Contains(t, h.buf.String(), "Aborting run: fatal task failed")
}

func TestRun_DegradingFailureLogsOneError(t *testing.T) {
	h := newHarness(t, emptySelection(t), nil)
	h.fake.On("false", runner.Failure(1, "boom"))
	ts := []tasks.Task{
		h.task("broken", tasks.Applications, tasks.Degrading, execFalse),
		h.task("next", tasks.Applications, tasks.Degrading, ok),
	}

	state := h.orch.Run(context.Background(), ts)

	assert.Equal(t, Completed, state)
	assert.Equal(t, []string{"broken", "next"}, h.ran)
	assert.Equal(t, 1, h.result.Errors())
	assert.Equal(t, 1, h.buf.CountLevel(zerolog.ErrorLevel))
	assert.Contains(t, h.buf.String(), `"exit_code":1`)
	assert.Contains(t, h.buf.String(), `"command":"false"`)
	assert.Equal(t, Failed, h.result.Outcomes()[0].Status)
}

func TestRun_RecoverableRestoresByteIdentical(t *testing.T) {
	dir := t.TempDir()
	original := "[options]\n#Color\n\x00binary-ish\n"
	path := testutil.CreateFile(t, dir, "pacman.conf", original)

	h := newHarness(t, emptySelection(t), nil)
	h.fake.On("false", runner.Failure(1, ""))
	ts := []tasks.Task{
		h.task("pacman-config", tasks.Preparation, tasks.Recoverable, func(tc *tasks.Context) error {
			err := tc.EditFile(path, func([]byte) ([]byte, error) { return []byte("garbage"), nil })
			if err != nil {
				return err
			}
			return execFalse(tc)
		}),
		h.task("after", tasks.Preparation, tasks.Degrading, ok),
	}

	state := h.orch.Run(context.Background(), ts)

	assert.Equal(t, Completed, state)
	testutil.AssertFileContent(t, path, original)
	assert.Equal(t, Restored, h.result.Outcomes()[0].Status)
	assert.Equal(t, []string{"pacman-config", "after"}, h.ran)
	assert.Contains(t, h.buf.String(), "Restored from backup")
}

func TestRun_RecoverableRestoresSeveralFilesInReverse(t *testing.T) {
	dir := t.TempDir()
	a := testutil.CreateFile(t, dir, "a.conf", "A\n")
	b := testutil.CreateFile(t, dir, "b.conf", "B\n")

	h := newHarness(t, emptySelection(t), nil)
	h.fake.On("mkinitcpio", runner.Failure(1, "==> ERROR"))
	ts := []tasks.Task{
		h.task("two-files", tasks.Hardware, tasks.Recoverable, func(tc *tasks.Context) error {
			for _, p := range []string{a, b} {
				if err := tc.EditFile(p, func([]byte) ([]byte, error) { return []byte("changed\n"), nil }); err != nil {
					return err
				}
			}
			return tc.Exec(runner.Cmd("mkinitcpio", "-P"))
		}),
	}

	h.orch.Run(context.Background(), ts)

	testutil.AssertFileContent(t, a, "A\n")
	testutil.AssertFileContent(t, b, "B\n")

	var restored []string
	for _, line := range strings.Split(h.buf.String(), "\n") {
		if strings.Contains(line, "Restored from backup") {
			restored = append(restored, line)
		}
	}
	require.Len(t, restored, 2)
	assert.Contains(t, restored[0], `"path":"`+b+`"`)
	assert.Contains(t, restored[1], `"path":"`+a+`"`)
}

func TestRun_BackupFailureFailsTaskBeforeMutation(t *testing.T) {
	dir := t.TempDir()
	target := testutil.CreateDir(t, dir, "fstab")

	h := newHarness(t, emptySelection(t), nil)
	mutated := false
	ts := []tasks.Task{
		h.task("gamedrive", tasks.Storage, tasks.Recoverable, func(tc *tasks.Context) error {
			if err := tc.Protect(target); err != nil {
				return err
			}
			mutated = true
			return nil
		}),
	}

	h.orch.Run(context.Background(), ts)

	assert.False(t, mutated)
	assert.Equal(t, Failed, h.result.Outcomes()[0].Status)
	assert.Contains(t, h.buf.String(), "BACKUP_INTEGRITY")
}

func TestRun_SkipWarns(t *testing.T) {
	h := newHarness(t, emptySelection(t), nil)
	ts := []tasks.Task{
		h.task("gamedrive", tasks.Storage, tasks.Recoverable, func(*tasks.Context) error {
			return tasks.Skip("no storage device selected")
		}),
	}

	assert.Equal(t, Completed, h.orch.Run(context.Background(), ts))
	assert.Equal(t, 1, h.result.Warnings())
	assert.Equal(t, 0, h.result.Errors())
	assert.Equal(t, 1, h.result.Count(Skipped))
}

func TestRun_PanicIsAFailure(t *testing.T) {
	h := newHarness(t, emptySelection(t), nil)
	ts := []tasks.Task{
		h.task("boom", tasks.Cleanup, tasks.Degrading, func(*tasks.Context) error { panic("nil map") }),
		h.task("after", tasks.Cleanup, tasks.Degrading, ok),
	}

	assert.Equal(t, Completed, h.orch.Run(context.Background(), ts))
	assert.Equal(t, []string{"boom", "after"}, h.ran)
	assert.Equal(t, 1, h.result.Errors())
}

func TestRun_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, emptySelection(t), nil)
	h.fake.OnFunc("pacman -Syu", func(runner.Command) runner.Result {
		cancel()
		return runner.Failure(runner.ExitInterrupted, "")
	})
	ts := []tasks.Task{
		h.task("system-upgrade", tasks.Preparation, tasks.Fatal, func(tc *tasks.Context) error {
			return tc.Exec(runner.Cmd("pacman", "-Syu", "--noconfirm"))
		}),
		h.task("aur-helper", tasks.Preparation, tasks.Degrading, ok),
	}

	state := h.orch.Run(ctx, ts)

	assert.Equal(t, Interrupted, state)
	assert.Equal(t, []string{"system-upgrade"}, h.ran)
	assert.Contains(t, h.buf.String(), "Run interrupted")
	assert.Equal(t, Interrupted, h.result.State())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, emptySelection(t), nil)
	state := h.orch.Run(ctx, []tasks.Task{h.task("a", tasks.Preparation, tasks.Fatal, ok)})

	assert.Equal(t, Interrupted, state)
	assert.Empty(t, h.ran)
	assert.Equal(t, 1, h.result.Errors())
}

type recorder struct {
	events []string
}

func (r *recorder) PhaseStarted(p tasks.Phase, n int) {
	r.events = append(r.events, "phase:"+p.String())
}
func (r *recorder) TaskStarted(t tasks.Task) { r.events = append(r.events, "start:"+t.ID) }
func (r *recorder) TaskFinished(o Outcome) {
	r.events = append(r.events, "end:"+o.TaskID+":"+o.Status.String())
}

func TestRun_Observer(t *testing.T) {
	rec := &recorder{}
	h := newHarness(t, emptySelection(t), func(o *Options) { o.Observer = rec })
	ts := []tasks.Task{
		h.task("a", tasks.Preparation, tasks.Degrading, ok),
		h.task("b", tasks.Cleanup, tasks.Degrading, func(*tasks.Context) error { return tasks.Skip("nothing") }),
	}

	h.orch.Run(context.Background(), ts)

	assert.Equal(t, []string{
		"phase:preparation", "start:a", "end:a:succeeded",
		"phase:cleanup", "start:b", "end:b:skipped",
	}, rec.events)
}

func TestRunResult_Elapsed(t *testing.T) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	r := NewRunResult("id", now)
	assert.Equal(t, time.Duration(0), r.Elapsed())

	r.start()
	r.finish(Completed, "")
	assert.Equal(t, time.Second, r.Elapsed())
	assert.Equal(t, time.Second, r.Elapsed(), "frozen once finished")
	assert.Equal(t, "id", r.RunID())
}

type noDevices struct{}

func (noDevices) ListStorageDevices(context.Context, string) ([]hardware.Device, error) {
	return nil, nil
}

func TestEndToEnd_GamedriveWithoutDevices(t *testing.T) {
	dir := t.TempDir()
	answers := testutil.CreateFile(t, dir, "answers.toml", "cpu = \"amd\"\ngpu = \"amd\"\nlaptop = false\nsteps = [\"gamedrive\"]\n")

	result := NewRunResult("e2e", nil)
	logger, buf := testutil.NewLogger(result)

	sel, err := selection.FromFile(context.Background(), answers, selection.Sources{Lister: noDevices{}, FSType: "btrfs", Logger: logger})
	require.NoError(t, err)
	require.True(t, sel.Has(selection.StepGamedrive))
	require.Equal(t, "", sel.StorageDevice())

	cfg, err := config.Load(config.LoadOptions{SkipEnv: true})
	require.NoError(t, err)
	etc := filepath.Join(dir, "etc")
	cfg.Files.PacmanConf = testutil.CreateFile(t, etc, "pacman.conf", "[options]\n#Color\n")
	cfg.Files.Mirrorlist = filepath.Join(etc, "mirrorlist")
	cfg.Files.Mkinitcpio = filepath.Join(etc, "mkinitcpio.conf")
	cfg.Files.Grub = filepath.Join(etc, "grub")
	cfg.Files.Fstab = filepath.Join(etc, "fstab")

	reg, err := catalog.Registry()
	require.NoError(t, err)

	store := backup.New(backup.Options{Root: filepath.Join(dir, "backups"), Logger: logger})
	orch := New(Options{
		Runner:    runner.NewFake(),
		Logger:    logger,
		Result:    result,
		Selection: sel,
		Paths:     paths.New(paths.User{Name: "alice", UID: 1000, GID: 1000, Home: filepath.Join(dir, "home")}, func(string) string { return "" }),
		Config:    cfg,
		Backups:   store,
		Install:   install.Options{MaxRetries: 1},
	})

	state := orch.Run(context.Background(), reg.Resolve(sel))

	assert.Equal(t, Completed, state)
	var gamedrive *Outcome
	for _, o := range result.Outcomes() {
		if o.TaskID == catalog.Gamedrive {
			o := o
			gamedrive = &o
		}
	}
	require.NotNil(t, gamedrive)
	assert.Equal(t, Skipped, gamedrive.Status)
	assert.Contains(t, buf.String(), `"task":"gamedrive"`)
	assert.GreaterOrEqual(t, result.Warnings(), 2, "device warning and skipped task")
	assert.Equal(t, 0, result.Errors())
}
