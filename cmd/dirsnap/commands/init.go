package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtarrant/dirsnap/internal/config"
	"github.com/jtarrant/dirsnap/internal/errors"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing rules file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter rules file",
	Long: `Bootstrap a rules file with sections for common project types.

Creates the file at $DIRSNAP_RULES if set, otherwise at
$XDG_CONFIG_HOME/dirsnap/rules.yaml. The starter file ships sections for
default, python, rust and node projects; edit it to taste.`,
	Example: `  # Write the starter rules file
  dirsnap init

  # Overwrite an existing rules file
  dirsnap init --force

  # Write to a custom location
  dirsnap init --rules ./rules.yaml

  See Also: dirsnap sections`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := rulesPath()

	if _, err := os.Stat(path); err == nil {
		if !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Rules file already exists at %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite")
			return nil
		}
		if err := os.Remove(path); err != nil {
			return errors.Wrap(err, "removing existing rules file")
		}
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
