package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// AddArtifactCommand adds the artifact command group to the root command.
func AddArtifactCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Save, validate, and inspect pipeline artifacts",
	}

	cmd.AddCommand(newArtifactSaveCmd(flags))
	cmd.AddCommand(newArtifactValidateCmd(flags))
	cmd.AddCommand(newArtifactShowCmd(flags))
	cmd.AddCommand(newArtifactListCmd(flags))
	cmd.AddCommand(newArtifactDeleteCmd(flags))

	root.AddCommand(cmd)
}

// parseKind validates a kind argument.
func parseKind(arg string) (domain.Kind, error) {
	kind := domain.Kind(arg)
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown kind %q (valid: %v)",
			pipelineerrors.ErrInvalidArgument, arg, domain.Kinds())
	}
	return kind, nil
}

func newArtifactSaveCmd(flags *GlobalFlags) *cobra.Command {
	var (
		file string
		mode string
		by   string
	)

	cmd := &cobra.Command{
		Use:   "save <kind>",
		Short: "Validate a document and store it as the artifact for its kind",
		Long: `Validates the candidate document under the requested mode and, if it
passes, replaces the stored artifact. The version is bumped and the
identifier-level change set against the prior version is reported so it
can be fed to impact analysis and propagation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			doc, err := os.ReadFile(file) //#nosec G304 -- user-supplied document path
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			saved, change, err := a.service.SaveDocument(cmd.Context(), kind, doc, a.validationMode(mode), by)
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]any{
					"artifact": saved,
					"change":   change,
				})
			}
			cmd.Printf("saved %s version %s (%d identifiers)\n", saved.Kind, saved.Version, len(saved.Defines))
			if !change.Empty() {
				cmd.Printf("change: %d added, %d removed, %d modified\n",
					len(change.Added), len(change.Removed), len(change.Modified))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the JSON document (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "validation mode (strict|lenient|draft)")
	cmd.Flags().StringVar(&by, "by", "", "authoring agent recorded as modified_by")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newArtifactValidateCmd(flags *GlobalFlags) *cobra.Command {
	var (
		file string
		mode string
	)

	cmd := &cobra.Command{
		Use:   "validate <kind>",
		Short: "Validate a document without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			doc, err := os.ReadFile(file) //#nosec G304 -- user-supplied document path
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			result, err := a.service.ValidateDocument(kind, doc, a.validationMode(mode))
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			} else {
				for _, fe := range result.Errors {
					cmd.Printf("error: %s\n", fe.Error())
				}
				for _, fe := range result.Warnings {
					cmd.Printf("warning: %s\n", fe.Error())
				}
				if result.Valid {
					cmd.Printf("%s document is valid (%d warnings)\n", kind, len(result.Warnings))
				}
			}
			return result.Err(kind)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the JSON document (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "validation mode (strict|lenient|draft)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newArtifactShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind>",
		Short: "Show the stored artifact envelope for a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			artifact, err := a.store.Get(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printJSON(cmd, artifact)
		},
	}
}

func newArtifactListCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts in canonical kind order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			artifacts, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, artifacts)
			}
			for _, art := range artifacts {
				stub := ""
				if art.Stub {
					stub = " (stub)"
				}
				cmd.Printf("%-14s %-8s %3d identifiers%s\n", art.Kind, art.Version, len(art.Defines), stub)
			}
			return nil
		},
	}
}

func newArtifactDeleteCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind>",
		Short: "Retire the stored artifact for a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), kind); err != nil {
				return err
			}
			cmd.Printf("deleted %s artifact\n", kind)
			return nil
		},
	}
}
