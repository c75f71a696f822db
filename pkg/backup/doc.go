// Package backup keeps timestamped copies of shared system files.
//
// A task that is about to rewrite a file such as /etc/pacman.conf first asks
// the Store for a Record. If the rewrite fails the same Record restores the
// original byte for byte. Backups live in a single root directory, named
// after the flattened original path plus a UTC timestamp, and are pruned to
// the most recent N copies per original.
//
// A backup is only returned once it has been written, synced and verified
// against the original's checksum. Anything less is reported as
// ErrBackupIntegrity so the caller never mutates an unprotected file.
package backup
