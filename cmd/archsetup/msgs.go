package archsetup

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Provision a fresh Arch Linux install"
	MsgPlanShort       = "Print the tasks a selection would run"
	MsgGenConfigShort  = "Write a selection file template"
	MsgReportShort     = "Print a report of the current system"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Flag descriptions
	MsgFlagVerbose    = "Increase verbosity (-v DEBUG, -vv TRACE)"
	MsgFlagDryRun     = "Log commands and file edits without executing them"
	MsgFlagConfig     = "Read the selection from a file instead of prompting"
	MsgFlagYes        = "Reboot at the end without asking"
	MsgFlagSaveConfig = "Write the selection to a file before running"
	MsgFlagFormat     = "Output format: auto, term, text or json"
	MsgFlagOutput     = "Write to a file instead of stdout"

	// Status messages
	MsgDryRunNotice     = "DRY RUN MODE - no changes were made"
	MsgRebootQuestion   = "Reboot now to finish the setup?"
	MsgReportWritten    = "Report written to %s\n"
	MsgSelectionWritten = "Selection written to %s\n"
	MsgPhaseHeader      = "%s (%d tasks)"
	MsgTaskLine         = "  %s %s\n"
	MsgErrorPrefix      = "Error: %v"
	MsgNothingChanged   = "No changes were made to this system."

	// Error messages
	MsgErrAborted     = "run aborted by fatal task %s"
	MsgErrInterrupted = "run interrupted"
)

// MsgRootLong is the root command help text.
const MsgRootLong = `archsetup installs and configures a fresh Arch Linux system: drivers for
your CPU and GPU, laptop power management, package groups, services, the
firewall, a game drive and your dotfiles.

Without --config it asks a few questions first. With --config it reads the
answers from a TOML, YAML or KEY=VALUE file (see "archsetup genconfig").

Every file archsetup rewrites is backed up first. A run log and a report
are written under the invoking user's XDG state directory.`

// MsgRootExample shows typical invocations.
const MsgRootExample = `  sudo archsetup                         # Ask, then provision
  sudo archsetup --config setup.toml     # Provision from a file
  sudo archsetup --dry-run -v            # Show what would happen
  archsetup plan --config setup.toml     # List the tasks only`

// MsgGenConfigLong is the genconfig help text.
const MsgGenConfigLong = `Print a commented selection file with every step enabled. Edit it and pass
it to --config.`

// MsgCompletionLong is the completion help text.
const MsgCompletionLong = `To load completions:

Bash:
  $ source <(archsetup completion bash)

Zsh:
  $ archsetup completion zsh > "${fpath[1]}/_archsetup"

Fish:
  $ archsetup completion fish | source

PowerShell:
  PS> archsetup completion powershell | Out-String | Invoke-Expression`

// MsgUsageTemplate is the cobra usage template.
const MsgUsageTemplate = `{{boldUpper "usage"}}:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if .HasExample}}

{{boldUpper "examples"}}:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

{{boldUpper "commands"}}:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{boldUpper "flags"}}:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{boldUpper "global flags"}}:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`
