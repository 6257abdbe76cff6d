package cli

import (
	"github.com/spf13/cobra"

	pipelinesync "github.com/forgeworks/pipeline/internal/sync"
)

// AddPropagateCommand adds the propagate command to the root command.
func AddPropagateCommand(root *cobra.Command, flags *GlobalFlags) {
	cf := &changeFlags{}

	cmd := &cobra.Command{
		Use:   "propagate <kind>",
		Short: "Apply safe propagations for a change and report the rest",
		Long: `Applies only provably safe propagations: creating a stub downstream
artifact for newly added identifiers and updating references for explicit
renames. A referenced identifier that was removed without a rename becomes
a conflict that must be resolved explicitly with the resolve command;
propagation never auto-resolves it.`,
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
			result, err := a.engine.PropagateChange(cmd.Context(), kind, change)
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, result)
			}
			for _, action := range result.AppliedActions {
				cmd.Printf("applied: %s\n", action)
			}
			for _, manual := range result.ManualReviewRequired {
				cmd.Printf("manual review: %s\n", manual)
			}
			for _, warning := range result.ResidualWarnings {
				cmd.Printf("warning: %s\n", warning)
			}
			for _, conflict := range result.Conflicts {
				cmd.Printf("conflict: %s references removed %s identifier %s\n",
					conflict.ReferencingKind, conflict.UpstreamKind, conflict.ID)
				for _, option := range pipelinesync.ResolutionOptionsFor(conflict) {
					cmd.Printf("  %s: %s\n", option.Choice, option.Description)
				}
			}
			return nil
		},
	}

	addChangeFlags(cmd, cf)
	root.AddCommand(cmd)
}
