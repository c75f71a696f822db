// Package paths provides centralized path handling for archsetup.
//
// archsetup runs as root through sudo but everything it persists (the run
// log, configuration backups, the final report) belongs to the invoking
// user. Paths therefore resolve against the target user's home following
// the XDG Base Directory layout; when archsetup runs without sudo the
// current user's XDG directories are used as-is.
package paths
