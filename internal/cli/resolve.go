package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// AddResolveCommand adds the resolve command to the root command.
func AddResolveCommand(root *cobra.Command, flags *GlobalFlags) {
	var (
		from   string
		choice string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "resolve <referencing-kind> <id>",
		Short: "Resolve a dangling reference conflict",
		Long: `Resolves a conflict where an artifact references an upstream identifier
that no longer exists. The choice is explicit: remove the reference,
reassign it to a surviving identifier (--to), or keep it as a known
orphan that is reported as a warning on every check.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			referencing, err := parseKind(args[0])
			if err != nil {
				return err
			}
			upstream, err := parseKind(from)
			if err != nil {
				return err
			}

			resolution := domain.ResolutionChoice(choice)
			switch resolution {
			case domain.ResolutionRemove, domain.ResolutionReassign, domain.ResolutionKeep:
			default:
				return fmt.Errorf("%w: choice %q must be remove, reassign, or keep",
					pipelineerrors.ErrInvalidArgument, choice)
			}
			if resolution == domain.ResolutionReassign && to == "" {
				return fmt.Errorf("%w: reassign requires --to", pipelineerrors.ErrInvalidArgument)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			conflict := domain.Conflict{
				ID:              args[1],
				UpstreamKind:    upstream,
				ReferencingKind: referencing,
			}
			if err := a.resolver.Apply(cmd.Context(), conflict, resolution, to); err != nil {
				return err
			}
			cmd.Printf("resolved %s reference %s in %s (%s)\n", upstream, args[1], referencing, resolution)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "upstream kind that used to define the identifier (required)")
	cmd.Flags().StringVar(&choice, "choice", "", "resolution: remove, reassign, or keep (required)")
	cmd.Flags().StringVar(&to, "to", "", "surviving identifier for reassign")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("choice")
	root.AddCommand(cmd)
}
