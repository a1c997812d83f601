package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/lobot-sh/lobot/internal/config"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/ui"
)

var initForce bool

// initCmd writes a starter .lobot.yaml in the current directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .lobot.yaml configuration",
	Long: `Write a starter configuration file in the current directory and
create the local keys, deploy, and fetch directories.

The file is commented; edit it to taste. Drop your per-key-pair .pem
files into the keys directory with mode 0400.

Examples:
  lobot init
  lobot init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	rootCmd.AddCommand(initCmd)
}

// initCommand creates the config file, prompting for the region and
// remote user when a terminal is attached.
func initCommand(force bool) error {
	configPath := filepath.Join(".", config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		if !ui.IsTerminal(os.Stdout) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
				Value(&overwrite),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()

	if ui.IsTerminal(os.Stdout) {
		if err := promptInitialSettings(cfg); err != nil {
			return err
		}
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	fmt.Printf("%s Wrote %s\n", ui.SymbolSuccess, configPath)
	fmt.Printf("  Keys directory: %s (drop your .pem files here, chmod 400)\n", cfg.KeysDir)
	fmt.Printf("  Deploy staging: %s\n", cfg.DeployDir)
	fmt.Printf("  Fetch target:   %s\n", cfg.FetchDir)
	return nil
}

// promptInitialSettings asks for the region and remote user.
func promptInitialSettings(cfg *config.Config) error {
	userOptions := make([]huh.Option[string], 0, len(config.RemoteUsers))
	for _, u := range config.RemoteUsers {
		userOptions = append(userOptions, huh.NewOption(u, u))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Working region").
				Description("The region your instances live in").
				Placeholder(cfg.Region).
				Value(&cfg.Region).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("region is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Remote user").
				Description("The SSH login user on your instances").
				Options(userOptions...).
				Value(&cfg.RemoteUser),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"failed to get user input",
			"Rerun 'lobot init' in a terminal, or edit the file by hand")
	}
	return nil
}
