package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarrant/dirsnap/internal/config"
	"github.com/jtarrant/dirsnap/internal/errors"
)

func init() {
	rootCmd.AddCommand(sectionsCmd)
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List rule sections defined in the rules file",
	Long: `List the sections of the rules file, one per line.

A section names one exclusion profile; pick it for a backup run with the
-s/--section flag.`,
	Example: `  # List sections of the default rules file
  dirsnap sections

  # List sections of a specific file
  dirsnap sections --rules ./rules.yaml

  See Also: dirsnap init`,
	RunE: runSections,
}

func runSections(cmd *cobra.Command, _ []string) error {
	path := rulesPath()

	names, err := config.Sections(path)
	if err != nil {
		return errors.NewConfigError(err)
	}

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintln(out, name)
	}

	return nil
}
