package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/arthur-debert/archsetup/cmd/archsetup"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

func main() {
	// SIGINT and SIGTERM cancel the run; the current child process is
	// killed and the pipeline stops as interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := archsetup.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(archsetup.MsgErrorPrefix, err)))
		if hint := archsetup.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		if archsetup.IsUsageError(err) {
			fmt.Fprintln(os.Stderr)
			_ = rootCmd.Usage()
		}
	}
	os.Exit(archsetup.ExitCode(err))
}
