package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Global flags available to all subcommands.
var (
	configFlag  string
	regionFlag  string
	verboseFlag bool
	quietFlag   bool
	yesFlag     bool
)

// rootCmd is the base command. Run without a subcommand it drops into
// the interactive menu.
var rootCmd = &cobra.Command{
	Use:   "lobot",
	Short: "Manage your cloud instances from the terminal",
	Long: `Lobot manages a small fleet of pre-existing cloud instances:
start and stop them, resize, rename, open a shell, tunnel a notebook,
and push or pull files.

Run without arguments for the interactive menu, or use the subcommands
directly:

  lobot list            Show instances in the working region
  lobot start [id]      Start a stopped instance
  lobot shell [id]      Open a shell on a running instance
  lobot notebook [id]   Tunnel a notebook server to a local port

Lobot never creates or terminates instances.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return menuCommand(cmd.Context())
	},
}

// Execute runs the root command and translates errors into exit codes.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	if stderrors.Is(err, errCancelled) {
		fmt.Println("Cancelled.")
		return
	}

	// Operator interrupt: local waiting stopped, but any request already
	// issued keeps going on the provider side.
	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "\nInterrupted. A request already sent to the provider may still complete.\n")
		os.Exit(130)
	}

	var exitErr *errors.ExitError
	if stderrors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&regionFlag, "region", "", "override the working region")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress log output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip confirmation prompts")
}
