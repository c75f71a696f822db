package preflight

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/testutil"
)

func TestPrivilege(t *testing.T) {
	require.NoError(t, Privilege(func() int { return 0 }).Run(context.Background()))

	err := Privilege(func() int { return 1000 }).Run(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrivilege))
	assert.True(t, errors.IsStartupValidation(err))
}

func TestTargetUser(t *testing.T) {
	require.NoError(t, TargetUser(paths.User{Name: "alice", UID: 1000}).Run(context.Background()))

	err := TargetUser(paths.User{Name: "root", UID: 0}).Run(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrUserUnknown))
}

func TestPlatform(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		ok      bool
	}{
		{name: "arch", content: "NAME=\"Arch Linux\"\nID=arch\n", ok: true},
		{name: "endeavour", content: "ID=endeavouros\nID_LIKE=arch\n", ok: true},
		{name: "cachy", content: "ID=cachyos\nID_LIKE=\"arch\"\n", ok: true},
		{name: "ubuntu", content: "ID=ubuntu\nID_LIKE=debian\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.CreateFile(t, dir, tt.name+"-os-release", tt.content)
			err := Platform(path).Run(context.Background())
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsErrorCode(err, errors.ErrUnsupportedPlatform))
		})
	}

	err := Platform(filepath.Join(dir, "missing")).Run(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnsupportedPlatform))
}

func TestNetwork(t *testing.T) {
	fake := runner.NewFake()
	require.NoError(t, Network(fake, "archlinux.org").Run(context.Background()))
	assert.Equal(t, []string{"ping -c 1 -W 5 archlinux.org"}, fake.Lines())

	fake.On("ping", runner.Failure(2, "unknown host"))
	err := Network(fake, "archlinux.org").Run(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrNoNetwork))
	details := errors.GetErrorDetails(err)
	assert.Equal(t, "archlinux.org", details["host"])
	assert.Equal(t, 2, details["exit_code"])
	assert.Equal(t, "ping -c 1 -W 5 archlinux.org", details["command"])
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	logger, buf := testutil.NewLogger()
	ran := []string{}
	check := func(name string, err error) Check {
		return Check{Name: name, Run: func(context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	err := Run(context.Background(), logger,
		check("a", nil),
		Interactive(false),
		check("c", nil),
	)

	assert.True(t, errors.IsErrorCode(err, errors.ErrNotInteractive))
	assert.Equal(t, []string{"a"}, ran)
	assert.Equal(t, 1, buf.CountLevel(zerolog.ErrorLevel))
	assert.NoError(t, Run(context.Background(), logger, Interactive(true)))
}
