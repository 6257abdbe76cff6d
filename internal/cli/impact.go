package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// changeFlags holds the identifier-level change description shared by the
// impact and propagate commands.
type changeFlags struct {
	added        []string
	removed      []string
	modified     []string
	renames      []string
	metadataOnly bool
}

// addChangeFlags registers the change description flags on a command.
func addChangeFlags(cmd *cobra.Command, cf *changeFlags) {
	cmd.Flags().StringSliceVar(&cf.added, "added", nil, "identifiers added by the change")
	cmd.Flags().StringSliceVar(&cf.removed, "removed", nil, "identifiers removed by the change")
	cmd.Flags().StringSliceVar(&cf.modified, "modified", nil, "identifiers whose entries changed")
	cmd.Flags().StringSliceVar(&cf.renames, "rename", nil, "identifier renames as old=new")
	cmd.Flags().BoolVar(&cf.metadataOnly, "metadata-only", false, "the change touched no identifiers")
}

// toChangeSet converts parsed flags into a domain change set.
func (cf *changeFlags) toChangeSet() (domain.ChangeSet, error) {
	change := domain.ChangeSet{
		Added:        cf.added,
		Removed:      cf.removed,
		Modified:     cf.modified,
		MetadataOnly: cf.metadataOnly,
	}
	if len(cf.renames) > 0 {
		change.Renames = make(map[string]string, len(cf.renames))
		for _, r := range cf.renames {
			old, renamed, ok := strings.Cut(r, "=")
			if !ok || old == "" || renamed == "" {
				return change, fmt.Errorf("%w: rename %q must be old=new", pipelineerrors.ErrInvalidArgument, r)
			}
			change.Renames[old] = renamed
		}
	}
	if change.Empty() && !change.MetadataOnly {
		return change, fmt.Errorf("%w: describe the change with --added, --removed, --modified, --rename, or --metadata-only",
			pipelineerrors.ErrInvalidArgument)
	}
	return change, nil
}

// AddImpactCommand adds the impact command to the root command.
func AddImpactCommand(root *cobra.Command, flags *GlobalFlags) {
	cf := &changeFlags{}

	cmd := &cobra.Command{
		Use:   "impact <kind>",
		Short: "Analyze how a change to one kind affects downstream artifacts",
		Long: `Grades the impact of an identifier-level change on every kind reachable
downstream through the dependency graph. Removing or adding identifiers
is high impact, modifying referenced identifiers is medium, and
metadata-only changes are low. The analysis mutates nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			change, err := cf.toChangeSet()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			report, err := a.engine.AnalyzeChangeImpact(cmd.Context(), kind, change)
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, report)
			}
			cmd.Printf("impact of changing %s (highest: %s)\n", report.Kind, report.HighestLevel())
			for _, impact := range report.Impacts {
				cmd.Printf("  %-14s %s\n", impact.Kind, impact.Level)
				for _, action := range impact.Actions {
					cmd.Printf("    - %s\n", action)
				}
			}
			return nil
		},
	}

	addChangeFlags(cmd, cf)
	root.AddCommand(cmd)
}
