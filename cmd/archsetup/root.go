package archsetup

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/archsetup/internal/version"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/ui"
)

type globalFlags struct {
	verbosity  int
	dryRun     bool
	configPath string
	yes        bool
	saveConfig string
}

// app carries the flags and environment shared by every command.
type app struct {
	env    Env
	flags  globalFlags
	logger zerolog.Logger
}

// NewRootCmd creates the root command for the real process environment.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithEnv(DefaultEnv())
}

// NewRootCmdWithEnv creates the root command for env.
func NewRootCmdWithEnv(env Env) *cobra.Command {
	initTemplateFormatting()

	a := &app{env: env.withDefaults(), logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:     "archsetup",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Example: MsgRootExample,
		Version: version.Version,
		Args:    usageArgs(cobra.NoArgs),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = logging.Setup(logging.Options{
				Verbosity: a.flags.verbosity,
				Console:   a.env.Stderr,
				NoColor:   !isTerminal(a.env.Stderr),
			}).Logger()
			a.logger.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetup(cmd)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&a.flags.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.BoolVar(&a.flags.dryRun, "dry-run", false, MsgFlagDryRun)
	flags.StringVarP(&a.flags.configPath, "config", "c", "", MsgFlagConfig)
	rootCmd.Flags().BoolVarP(&a.flags.yes, "yes", "y", false, MsgFlagYes)
	rootCmd.Flags().StringVar(&a.flags.saveConfig, "save-config", "", MsgFlagSaveConfig)

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)
	rootCmd.SetOut(a.env.Stdout)
	rootCmd.SetErr(a.env.Stderr)

	rootCmd.AddCommand(a.newPlanCmd())
	rootCmd.AddCommand(a.newGenConfigCmd())
	rootCmd.AddCommand(a.newReportCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(validate(cmd, args))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsInteractive(f)
}

// outputFormat parses a --format value and resolves auto against w.
func outputFormat(value string, w io.Writer) (ui.Format, error) {
	format, err := ui.ParseFormat(value)
	if err != nil {
		return format, usageError(err)
	}
	f, _ := w.(*os.File)
	return format.Resolve(f), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archsetup version %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			fmt.Fprintf(out, "  built:  %s\n", version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  usageArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
