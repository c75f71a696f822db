package tasks

import (
	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/errors"
)

// Journal records the backups one task made, so they can be undone.
type Journal struct {
	store   *backup.Store
	records []backup.Record
}

// NewJournal creates an empty journal writing into store.
func NewJournal(store *backup.Store) *Journal {
	return &Journal{store: store}
}

// Protect backs up path. A path already protected by this journal is not
// copied again, so a restore always returns to the state before the task.
func (j *Journal) Protect(path string) (backup.Record, error) {
	for _, rec := range j.records {
		if rec.Original == path {
			return rec, nil
		}
	}
	if j.store == nil {
		return backup.Record{}, errors.New(errors.ErrBackupIntegrity, "no backup store configured").
			WithDetail("path", path)
	}
	rec, err := j.store.Backup(path)
	if err != nil {
		return backup.Record{}, err
	}
	j.records = append(j.records, rec)
	return rec, nil
}

// Len returns the number of recorded backups.
func (j *Journal) Len() int { return len(j.records) }

// RestoreAll restores every record, newest first. Each restore is logged;
// the first failure is returned after all records were attempted.
func (j *Journal) RestoreAll(logger zerolog.Logger) error {
	var first error
	for i := len(j.records) - 1; i >= 0; i-- {
		rec := j.records[i]
		if err := j.store.Restore(rec); err != nil {
			logger.Error().Err(err).Str("path", rec.Original).Msg("Failed to restore backup")
			if first == nil {
				first = err
			}
			continue
		}
		logger.Info().Str("path", rec.Original).Str("backup", rec.Backup).Msg("Restored from backup")
	}
	return first
}
