// Package system knows the argument grammar of every external tool the
// catalog drives and the layout of the configuration files it edits.
// Everything here builds runner.Commands or transforms file content; nothing
// executes on its own, so tasks stay a list of calls and tests can assert on
// exact command lines.
package system
