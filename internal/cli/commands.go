package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// listCmd shows the instances in the working region.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances in the working region",
	Long: `Show every instance in the working region with its state, type,
public address, and uptime.

With load_prices enabled in the config, the on-demand hourly price per
type is looked up and shown too.

Examples:
  lobot list
  lobot list --region eu-central-1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.listWorkflow(cmd.Context())
	},
}

// startCmd starts a stopped instance and waits for running + address.
var startCmd = &cobra.Command{
	Use:   "start [instance]",
	Short: "Start a stopped instance",
	Long: `Start a stopped instance and wait until it reports running with a
public address assigned.

The instance may be given by id or name; with no argument a picker is
shown. Starting an instance that is already running succeeds without
doing anything.

Examples:
  lobot start
  lobot start i-0abc123
  lobot start web`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.startWorkflow(ctx, inst)
	}),
}

// stopCmd stops a running instance and waits for stopped.
var stopCmd = &cobra.Command{
	Use:   "stop [instance]",
	Short: "Stop a running instance",
	Long: `Stop a running instance and wait until it reports stopped.

Stopping an instance that is already stopped succeeds without doing
anything. Interrupting the wait does not cancel the stop on the
provider side.

Examples:
  lobot stop
  lobot stop i-0abc123 --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.stopWorkflow(ctx, inst)
	}),
}

// resizeCmd changes the machine type of a stopped instance.
var resizeCmd = &cobra.Command{
	Use:   "resize [instance] [type]",
	Short: "Change the machine type of a stopped instance",
	Long: `Change the machine type. The instance must be stopped first.

With no type argument the configured catalog is offered as a menu.
The change is verified with a fresh read after the provider accepts it.

Examples:
  lobot resize
  lobot resize i-0abc123 t3.xlarge`,
	Args: cobra.MaximumNArgs(2),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, rest []string) error {
		newType := ""
		if len(rest) > 0 {
			newType = rest[0]
		}
		return a.resizeWorkflow(ctx, inst, newType)
	}),
}

// renameCmd sets the display name tag.
var renameCmd = &cobra.Command{
	Use:   "rename [instance] [name]",
	Short: "Rename an instance",
	Long: `Set the display name of an instance. Works in any non-terminal
state; the new name is verified with a fresh read.

Examples:
  lobot rename i-0abc123 training-box
  lobot rename`,
	Args: cobra.MaximumNArgs(2),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, rest []string) error {
		newName := ""
		if len(rest) > 0 {
			newName = rest[0]
		}
		return a.renameWorkflow(ctx, inst, newName)
	}),
}

// shellCmd opens an interactive shell over SSH.
var shellCmd = &cobra.Command{
	Use:   "shell [instance]",
	Short: "Open a shell on a running instance",
	Long: `Open an interactive shell on a running instance.

The per-key-pair private key from the keys directory is used; it must
be readable by the owner only (chmod 400). Nothing is dialed until the
key checks out.

Examples:
  lobot shell
  lobot shell i-0abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.shellWorkflow(ctx, inst)
	}),
}

// notebookCmd tunnels the remote notebook server to a local port.
var notebookCmd = &cobra.Command{
	Use:   "notebook [instance]",
	Short: "Tunnel a notebook server to a local port",
	Long: `Connect to a running instance, start a notebook server there if
none is running, and forward it to a free local port. The tokenized
URL printed opens the notebook in your browser.

The first free port in a small range above the configured local port
is used. Ctrl+C closes the tunnel; the remote server keeps running.

Examples:
  lobot notebook
  lobot notebook i-0abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.notebookWorkflow(ctx, inst)
	}),
}

// runCmd executes a single command on a running instance.
var runCmd = &cobra.Command{
	Use:   "run <instance> <command>...",
	Short: "Run a command on a running instance",
	Long: `Execute a command on a running instance and stream its output.
The remote exit code becomes lobot's exit code.

Examples:
  lobot run i-0abc123 "nvidia-smi"
  lobot run web ls -la lobot/deploy`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		inst, err := a.resolveInstance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.runWorkflow(cmd.Context(), inst, strings.Join(args[1:], " "))
	},
}

// deployCmd pushes the local deploy directory to the instance.
var deployCmd = &cobra.Command{
	Use:   "deploy [instance]",
	Short: "Copy the local deploy directory to an instance",
	Long: `Recursively copy the local deploy directory to the instance's
working directory. The remote directory is created if missing.

A failed copy may leave some files transferred; rerun to complete it.

Examples:
  lobot deploy
  lobot deploy i-0abc123 --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.deployWorkflow(ctx, inst)
	}),
}

// fetchCmd pulls the remote fetch directory to the local one.
var fetchCmd = &cobra.Command{
	Use:   "fetch [instance]",
	Short: "Copy an instance's fetch directory to this machine",
	Long: `Recursively copy the instance's fetch directory into the local
fetch directory. Both directories are created if missing.

Examples:
  lobot fetch
  lobot fetch i-0abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.fetchWorkflow(ctx, inst)
	}),
}

// infoCmd shows extended metadata for one instance.
var infoCmd = &cobra.Command{
	Use:   "info [instance]",
	Short: "Show instance details",
	Long: `Show the extended details of one instance: image, availability
zone, CPU cores, and launch time, alongside the usual snapshot fields.

Examples:
  lobot info i-0abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstanceCommand(func(ctx context.Context, a *app, inst cloud.Instance, _ []string) error {
		return a.infoWorkflow(ctx, inst)
	}),
}

// regionsCmd lists the regions available to the account.
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List available regions",
	Long: `List the provider regions available to your credentials, with
readable location names where known.

Examples:
  lobot regions`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.regionsWorkflow(cmd.Context())
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for lobot.

Examples:
  # Bash
  lobot completion bash > /etc/bash_completion.d/lobot

  # Zsh
  lobot completion zsh > "${fpath[1]}/_lobot"

  # Fish
  lobot completion fish > ~/.config/fish/completions/lobot.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

// instanceWorkflow is a workflow that operates on one resolved instance.
// rest carries the arguments after the instance selector.
type instanceWorkflow func(ctx context.Context, a *app, inst cloud.Instance, rest []string) error

// runInstanceCommand wires the shared resolve-then-run shape of the
// per-instance commands.
func runInstanceCommand(fn instanceWorkflow) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		selector := ""
		if len(args) > 0 {
			selector = args[0]
		}

		inst, err := a.resolveInstance(cmd.Context(), selector)
		if err != nil {
			return err
		}

		var rest []string
		if len(args) > 1 {
			rest = args[1:]
		}
		return fn(cmd.Context(), a, inst, rest)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(resizeCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(notebookCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(completionCmd)
}
