// Package testutil provides helpers shared by archsetup tests: temp file
// creation, file assertions and captured loggers.
package testutil
