package cmd

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitchain/packages/core/parser"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List setup specs, chains and specs in suite files",
	Long: `List everything a run would execute, in execution order.

Examples:
  hitchain list users.suite.yaml
  hitchain list ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	failed := false
	for _, file := range files {
		f, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			failed = true
			continue
		}
		printFile(cmd.OutOrStdout(), file, f)
	}

	if failed {
		return withExitCode(ExitParseError, fmt.Errorf("some files could not be parsed"))
	}
	return nil
}

func printFile(w io.Writer, path string, f *parser.File) {
	fmt.Fprintf(w, "\n%s (%s):\n", path, f.Name)
	for _, def := range f.Setup {
		fmt.Fprintf(w, "  setup: %s\n", def.Label())
	}
	for _, c := range f.Chains {
		fmt.Fprintf(w, "  chain %s%s\n", c.Name, describe(c.Tags, c.Skip))
		for _, st := range c.Steps {
			fmt.Fprintf(w, "    - %s%s\n", st.Spec.Label(), describe(st.Spec.Tags, st.Spec.Skip))
			if st.Clean != nil {
				fmt.Fprintf(w, "      clean: %s\n", st.Clean.Label())
			}
		}
	}
	for _, def := range f.Specs {
		fmt.Fprintf(w, "  - %s%s\n", def.Label(), describe(def.Tags, def.Skip))
	}
}

func describe(tags []string, skip string) string {
	s := ""
	if len(tags) > 0 {
		s += fmt.Sprintf(" %v", tags)
	}
	if skip != "" {
		s += " (skip: " + skip + ")"
	}
	return s
}
