package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status for every stored artifact",
		Long: `Reports, per artifact kind, whether the artifact is synchronized with
its direct upstream kinds: all references resolve and no upstream has
changed since the last sync. Status is derived fresh from stored state
on every invocation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			status, err := a.engine.ComputeSyncStatus(cmd.Context())
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, status)
			}

			for _, ks := range status.PerKind {
				if ks.InSync {
					cmd.Printf("%-14s in sync\n", ks.Kind)
					continue
				}
				var reasons []string
				for up, ids := range ks.MissingRefs {
					reasons = append(reasons, "missing "+up.String()+" refs: "+strings.Join(ids, ", "))
				}
				for _, up := range ks.StaleUpstreams {
					reasons = append(reasons, "stale against "+up.String())
				}
				cmd.Printf("%-14s OUT OF SYNC (%s)\n", ks.Kind, strings.Join(reasons, "; "))
			}
			if status.InSync {
				cmd.Println("pipeline is in sync")
			}
			return nil
		},
	}
	root.AddCommand(cmd)
}
