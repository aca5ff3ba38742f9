package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitswalk/xtc/src/common/output"
	"github.com/bitswalk/xtc/src/xtc/plan"
)

var planShowArgs bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the derived stage plan without building",
	Long: `Print the ordered steps xtc would run for the given host and target,
with the make targets and, with --args, the configure arguments of each step.
Nothing is cloned, created or built.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, registry, err := loadBuildConfig()
		if err != nil {
			return err
		}
		p, err := plan.Derive(cfg, registry)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat == string(output.FormatJSON) {
			return output.PrintJSON(out, p)
		}

		output.PrintHeading(out, fmt.Sprintf("%s -> %s", p.Host, p.Target))
		output.PrintKeyValues(out, [][2]string{
			{"Build", string(p.Build)},
			{"Cross", fmt.Sprintf("%t", p.Cross)},
			{"Canadian", fmt.Sprintf("%t", p.Canadian)},
			{"Install root", cfg.InstallRoot()},
			{"Compiler", filepath.Join(cfg.InstallBin(), p.Target.ToolPrefix()+"gcc")},
		})
		fmt.Fprintln(out)

		headers := []string{"#", "STEP", "MODULE", "CONFIGURE", "BUILD", "INSTALL", "EXPORT PATH"}
		var rows [][]string
		for i, s := range p.Steps {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i+1),
				s.Name,
				string(s.Module.Name),
				yesNo(s.Configures()),
				targetName(s.BuildTarget),
				s.InstallTarget,
				yesNo(s.ExportBin),
			})
		}
		output.PrintTable(out, headers, rows)

		if planShowArgs {
			for _, s := range p.Steps {
				if !s.Configures() && len(s.Aliases) == 0 {
					continue
				}
				fmt.Fprintln(out)
				output.PrintHeading(out, s.Name)
				for _, a := range s.Aliases {
					fmt.Fprintf(out, "  link %s -> %s\n", a.Link, a.Target)
				}
				if s.Configures() {
					fmt.Fprintf(out, "  %s \\\n    %s\n", s.Module.ConfigureScript(cfg.SourceRoot()), strings.Join(s.ConfigureArgs, " \\\n    "))
				}
			}
		}
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planShowArgs, "args", false, "Also print configure arguments and prerequisite links")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func targetName(t string) string {
	if t == plan.TargetDefault {
		return "all"
	}
	return t
}
