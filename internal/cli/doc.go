// Package cli implements the lobot command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to a workflow method on the app type for the actual work.
// The general structure separates:
//
//   - Command definitions (cobra.Command instances)
//   - Workflow orchestration (app methods: listWorkflow, startWorkflow, ...)
//   - Implementation details (in the other internal packages)
//
// # Command Structure
//
// The root command is "lobot"; run bare it drops into the interactive
// menu. Subcommands cover every action directly:
//
//	lobot list              - Show instances in the working region
//	lobot start [instance]  - Start a stopped instance
//	lobot stop [instance]   - Stop a running instance
//	lobot resize [instance] - Change the machine type (stopped only)
//	lobot rename [instance] - Set the display name
//	lobot shell [instance]  - Open an interactive shell
//	lobot notebook [instance] - Tunnel a notebook server locally
//	lobot run <instance> <cmd> - Run one command remotely
//	lobot deploy [instance] - Push the local deploy directory
//	lobot fetch [instance]  - Pull the remote fetch directory
//	lobot info [instance]   - Show extended details
//	lobot regions           - List available regions
//	lobot init              - Write a starter config
//
// An instance may be named by id or display name; with neither, a
// picker runs over the region's instances.
//
// # Flag Handling
//
// Global flags (--config, --region, --verbose, --quiet, --yes) are
// defined on the root command and available to all subcommands.
// --region overrides the configured working region for one invocation;
// --yes skips confirmation prompts for mutating actions.
//
// # Interrupts
//
// Ctrl+C stops local waiting only. A lifecycle request already issued
// keeps processing on the provider side, and Execute prints a warning
// saying so before exiting.
package cli
