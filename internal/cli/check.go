package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// AddCheckCommand adds the check command to the root command.
func AddCheckCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify cross-references across all stored artifacts",
		Long: `Checks that every identifier referenced by one artifact exists in the
current version of the upstream artifact that should define it. Kept
orphans and undeclared dependency edges are reported as warnings; a
missing identifier is a failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			report, err := a.checker.Check(cmd.Context())
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				if err := printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				for _, check := range report.Checks {
					cmd.Printf("[%s] %s\n", check.Verdict, check.Detail)
				}
			}
			if !report.Valid {
				return fmt.Errorf("cross-reference check failed: %w", pipelineerrors.ErrReferenceNotFound)
			}
			if flags.Output != OutputJSON {
				cmd.Printf("all cross-references resolve (%d checks)\n", len(report.Checks))
			}
			return nil
		},
	}
	root.AddCommand(cmd)
}
