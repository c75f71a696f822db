// pkg/backup/backup_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: real filesystem (t.TempDir)
// PURPOSE: Backup, restore and prune semantics of the Store

package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T) (*backup.Store, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "backups")
	return backup.New(backup.Options{Root: root, Logger: zerolog.Nop(), Now: tickingClock()}), root
}

func TestBackup_CopiesAndVerifies(t *testing.T) {
	store, root := newStore(t)
	original := testutil.CreateFile(t, t.TempDir(), "etc/pacman.conf", "[options]\nColor\n")
	require.NoError(t, os.Chmod(original, 0640))

	rec, err := store.Backup(original)
	require.NoError(t, err)

	assert.Equal(t, original, rec.Original)
	assert.False(t, rec.Absent)
	assert.Equal(t, root, filepath.Dir(rec.Backup))
	assert.Contains(t, filepath.Base(rec.Backup), "pacman.conf.")
	assert.Equal(t, "[options]\nColor\n", testutil.ReadFile(t, rec.Backup))

	info, err := os.Stat(rec.Backup)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestBackup_MissingOriginalIsAbsentRecord(t *testing.T) {
	store, _ := newStore(t)
	missing := filepath.Join(t.TempDir(), "fstab")

	rec, err := store.Backup(missing)
	require.NoError(t, err)
	assert.True(t, rec.Absent)
	assert.Empty(t, rec.Backup)

	testutil.CreateFile(t, filepath.Dir(missing), "fstab", "created later")
	require.NoError(t, store.Restore(rec))
	assert.NoFileExists(t, missing)

	// Second restore of an absent record is a no-op.
	require.NoError(t, store.Restore(rec))
}

func TestBackup_IntegrityFailures(t *testing.T) {
	t.Run("directory is not a file", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.Backup(t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIntegrity))
	})

	t.Run("backup root cannot be created", func(t *testing.T) {
		dir := t.TempDir()
		blocker := testutil.CreateFile(t, dir, "blocker", "x")
		store := backup.New(backup.Options{Root: filepath.Join(blocker, "backups"), Logger: zerolog.Nop()})
		original := testutil.CreateFile(t, dir, "mirrorlist", "Server = x")

		_, err := store.Backup(original)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIntegrity))
	})
}

func TestRestore_ByteIdenticalAndIdempotent(t *testing.T) {
	store, _ := newStore(t)
	content := "UUID=abc /mnt/games btrfs defaults 0 0\n"
	original := testutil.CreateFile(t, t.TempDir(), "fstab", content)

	rec, err := store.Backup(original)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(original, []byte("garbage"), 0644))
	require.NoError(t, store.Restore(rec))
	assert.Equal(t, content, testutil.ReadFile(t, original))

	require.NoError(t, store.Restore(rec))
	assert.Equal(t, content, testutil.ReadFile(t, original))

	require.NoError(t, os.Remove(original))
	require.NoError(t, store.Restore(rec))
	assert.Equal(t, content, testutil.ReadFile(t, original))
}

func TestRestore_MissingBackup(t *testing.T) {
	store, _ := newStore(t)
	original := testutil.CreateFile(t, t.TempDir(), "grub", "GRUB_TIMEOUT=5")

	rec, err := store.Backup(original)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.Backup))

	err = store.Restore(rec)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBackupRestore))
}

func TestPrune_KeepsMostRecent(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		keep     int
	}{
		{name: "more than keep", existing: 8, keep: 5},
		{name: "exactly keep", existing: 5, keep: 5},
		{name: "fewer than keep", existing: 2, keep: 5},
		{name: "keep zero", existing: 3, keep: 0},
		{name: "nothing yet", existing: 0, keep: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newStore(t)
			original := testutil.CreateFile(t, t.TempDir(), "mkinitcpio.conf", "MODULES=()")

			var created []backup.Record
			for i := 0; i < tt.existing; i++ {
				rec, err := store.Backup(original)
				require.NoError(t, err)
				created = append(created, rec)
			}

			removed, err := store.Prune(original, tt.keep)
			require.NoError(t, err)

			left, err := store.List(original)
			require.NoError(t, err)

			want := tt.existing
			if tt.keep < want {
				want = tt.keep
			}
			assert.Len(t, left, want)
			assert.Len(t, removed, tt.existing-want)

			// The survivors are the newest ones, newest first.
			for i, rec := range left {
				assert.Equal(t, created[tt.existing-1-i].Backup, rec.Backup)
			}
		})
	}
}

func TestPrune_OnlyTouchesTarget(t *testing.T) {
	store, _ := newStore(t)
	dir := t.TempDir()
	a := testutil.CreateFile(t, dir, "pacman.conf", "a")
	b := testutil.CreateFile(t, dir, "pacman.conf.d", "b")

	for i := 0; i < 3; i++ {
		_, err := store.Backup(a)
		require.NoError(t, err)
		_, err = store.Backup(b)
		require.NoError(t, err)
	}

	_, err := store.Prune(a, 1)
	require.NoError(t, err)

	left, err := store.List(b)
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestPrune_NegativeKeep(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Prune("/etc/fstab", -1)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
}

func TestPruneAll(t *testing.T) {
	store, _ := newStore(t)
	dir := t.TempDir()
	files := []string{
		testutil.CreateFile(t, dir, "fstab", "1"),
		testutil.CreateFile(t, dir, "grub", "2"),
	}
	for _, f := range files {
		for i := 0; i < 7; i++ {
			_, err := store.Backup(f)
			require.NoError(t, err)
		}
	}

	removed, err := store.PruneAll(backup.DefaultKeep)
	require.NoError(t, err)
	assert.Len(t, removed, 4)

	for _, f := range files {
		left, err := store.List(f)
		require.NoError(t, err)
		assert.Len(t, left, backup.DefaultKeep)
	}
}

func TestBackup_SameInstantGetsDistinctNames(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := backup.New(backup.Options{
		Root:   filepath.Join(t.TempDir(), "backups"),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixed },
	})
	original := testutil.CreateFile(t, t.TempDir(), "mirrorlist", "Server = a")

	first, err := store.Backup(original)
	require.NoError(t, err)
	second, err := store.Backup(original)
	require.NoError(t, err)

	assert.NotEqual(t, first.Backup, second.Backup)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))
}

func TestPrune_DryRunRemovesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "backups")
	writer := backup.New(backup.Options{Root: root, Logger: zerolog.Nop(), Now: tickingClock()})
	original := testutil.CreateFile(t, t.TempDir(), "fstab", "UUID=x /mnt ext4 defaults 0 0\n")
	for i := 0; i < 4; i++ {
		_, err := writer.Backup(original)
		require.NoError(t, err)
	}

	dry := backup.New(backup.Options{Root: root, Logger: zerolog.Nop(), DryRun: true})
	removed, err := dry.PruneAll(1)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	left, err := writer.List(original)
	require.NoError(t, err)
	assert.Len(t, left, 4)
}
