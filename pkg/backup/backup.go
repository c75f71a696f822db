package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/rs/zerolog"
)

const (
	// DefaultKeep is how many backups per original survive pruning.
	DefaultKeep = 5

	timestampLayout = "20060102-150405.000000000"
	suffix          = ".bak"
)

// Record points at one backup of one file.
type Record struct {
	Original  string
	Backup    string
	CreatedAt time.Time
	// Absent is set when the original did not exist. Restoring such a record
	// removes whatever was created at Original.
	Absent bool
}

// Options configures a Store.
type Options struct {
	Root   string
	Logger zerolog.Logger
	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time
	// DryRun makes Prune report what it would remove without removing it.
	DryRun bool
}

// Store creates, restores and prunes backups under a single root.
type Store struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time
	dryRun bool
}

// New creates a Store. The root directory is created lazily.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		root:   opts.Root,
		logger: logging.Component(opts.Logger, "backup"),
		now:    now,
		dryRun: opts.DryRun,
	}
}

// WithDryRun returns a copy of s whose Prune removes nothing.
func (s *Store) WithDryRun() *Store {
	c := *s
	c.dryRun = true
	return &c
}

// Root returns the backup root directory.
func (s *Store) Root() string {
	return s.root
}

// Backup copies path into the backup root and verifies the copy.
func (s *Store) Backup(path string) (Record, error) {
	original, err := filepath.Abs(path)
	if err != nil {
		return Record{}, errors.Wrapf(err, errors.ErrBackupIntegrity, "cannot resolve %s", path)
	}

	info, err := os.Stat(original)
	if os.IsNotExist(err) {
		rec := Record{Original: original, CreatedAt: s.now().UTC(), Absent: true}
		s.logger.Debug().Str("original", original).Msg("Original absent, recording removal on restore")
		return rec, nil
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, errors.ErrBackupIntegrity, "cannot stat %s", original)
	}
	if !info.Mode().IsRegular() {
		return Record{}, errors.Newf(errors.ErrBackupIntegrity, "%s is not a regular file", original)
	}

	if err := os.MkdirAll(s.root, 0700); err != nil {
		return Record{}, errors.Wrapf(err, errors.ErrBackupIntegrity, "cannot create backup root %s", s.root)
	}

	created := s.now().UTC()
	dest := s.backupPath(original, created)
	for fileExists(dest) {
		created = created.Add(time.Nanosecond)
		dest = s.backupPath(original, created)
	}

	if err := copyFile(original, dest, s.root); err != nil {
		return Record{}, errors.Wrapf(err, errors.ErrBackupIntegrity, "cannot copy %s", original)
	}

	if err := verify(original, dest); err != nil {
		_ = os.Remove(dest)
		return Record{}, errors.Wrapf(err, errors.ErrBackupIntegrity, "backup of %s failed verification", original)
	}

	rec := Record{Original: original, Backup: dest, CreatedAt: created}
	s.logger.Info().
		Str("original", original).
		Str("backup", dest).
		Msg("Backup created")
	return rec, nil
}

// Restore puts the backed up content back at the original path. Calling it
// more than once has the same effect as calling it once.
func (s *Store) Restore(rec Record) error {
	if rec.Absent {
		if err := os.Remove(rec.Original); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrBackupRestore, "cannot remove %s", rec.Original)
		}
		s.logger.Info().Str("original", rec.Original).Msg("Removed file that did not exist before")
		return nil
	}

	if !fileExists(rec.Backup) {
		return errors.Newf(errors.ErrBackupRestore, "backup %s is missing", rec.Backup).
			WithDetail("original", rec.Original)
	}

	if err := os.MkdirAll(filepath.Dir(rec.Original), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrBackupRestore, "cannot recreate directory of %s", rec.Original)
	}
	if err := copyFile(rec.Backup, rec.Original, filepath.Dir(rec.Original)); err != nil {
		return errors.Wrapf(err, errors.ErrBackupRestore, "cannot restore %s", rec.Original)
	}
	if err := verify(rec.Backup, rec.Original); err != nil {
		return errors.Wrapf(err, errors.ErrBackupRestore, "restored %s does not match backup", rec.Original)
	}

	s.logger.Info().
		Str("original", rec.Original).
		Str("backup", rec.Backup).
		Msg("Backup restored")
	return nil
}

// List returns the backups of path, newest first.
func (s *Store) List(path string) ([]Record, error) {
	original, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	flat := flatten(original)

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read backup root %s", s.root)
	}

	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		target, created, ok := parseName(name)
		if !ok || target != flat {
			continue
		}
		records = append(records, Record{
			Original:  original,
			Backup:    filepath.Join(s.root, name),
			CreatedAt: created,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Prune deletes all but the keep most recent backups of path and returns
// the removed backup paths. In dry-run mode nothing is deleted and the
// paths that would be removed are returned.
func (s *Store) Prune(path string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, errors.Newf(errors.ErrInternal, "keep must not be negative, got %d", keep)
	}

	records, err := s.List(path)
	if err != nil {
		return nil, err
	}
	if len(records) <= keep {
		return nil, nil
	}

	var removed []string
	for _, rec := range records[keep:] {
		if s.dryRun {
			removed = append(removed, rec.Backup)
			continue
		}
		if err := os.Remove(rec.Backup); err != nil && !os.IsNotExist(err) {
			return removed, errors.Wrapf(err, errors.ErrFileAccess, "cannot remove %s", rec.Backup)
		}
		removed = append(removed, rec.Backup)
	}

	s.logger.Debug().
		Str("original", records[0].Original).
		Int("kept", keep).
		Int("removed", len(removed)).
		Bool("dryRun", s.dryRun).
		Msg("Pruned backups")
	return removed, nil
}

// PruneAll prunes every original that has backups in the root.
func (s *Store) PruneAll(keep int) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read backup root %s", s.root)
	}

	seen := map[string]bool{}
	var targets []string
	for _, entry := range entries {
		target, _, ok := parseName(entry.Name())
		if ok && !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	sort.Strings(targets)

	var removed []string
	for _, target := range targets {
		r, err := s.Prune(unflatten(target), keep)
		removed = append(removed, r...)
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *Store) backupPath(original string, created time.Time) string {
	return filepath.Join(s.root, fmt.Sprintf("%s.%s%s", flatten(original), created.Format(timestampLayout), suffix))
}

// flatten turns /etc/pacman.d/mirrorlist into etc%pacman.d%mirrorlist.
func flatten(original string) string {
	return strings.ReplaceAll(strings.TrimPrefix(filepath.Clean(original), "/"), "/", "%")
}

func unflatten(flat string) string {
	return "/" + strings.ReplaceAll(flat, "%", "/")
}

func parseName(name string) (string, time.Time, bool) {
	if !strings.HasSuffix(name, suffix) {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(name, suffix)
	cut := len(base) - len(timestampLayout) - 1
	if cut <= 0 || base[cut] != '.' {
		return "", time.Time{}, false
	}
	created, err := time.Parse(timestampLayout, base[cut+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:cut], created, true
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// copyFile writes src to dst through a synced temp file in tmpDir and a
// rename, keeping the mode and ownership of src.
func copyFile(src, dst, tmpDir string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(tmpDir, ".archsetup-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		cleanup()
		return err
	}
	preserveOwner(tmpName, info)

	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return err
	}
	return nil
}

func preserveOwner(path string, info fs.FileInfo) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		// Only root can chown; for everyone else this is a no-op failure.
		_ = os.Lchown(path, int(st.Uid), int(st.Gid))
	}
}
