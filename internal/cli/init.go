package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgeworks/pipeline/internal/config"
	"github.com/forgeworks/pipeline/internal/constants"
)

// AddInitCommand adds the init command to the root command.
func AddInitCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize pipeline state in the current project",
		Long: `Creates the .pipeline state directory with its artifact and todo
subdirectories and writes a config.yaml with the default settings.
Running init in an already initialized project is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stateDir := flags.StateDir
			if stateDir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				stateDir = filepath.Join(wd, constants.PipelineHome)
			}

			for _, dir := range []string{
				stateDir,
				filepath.Join(stateDir, constants.ArtifactsDir),
				filepath.Join(stateDir, constants.TodosDir),
				filepath.Join(stateDir, constants.LogsDir),
			} {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}

			configPath := filepath.Join(stateDir, constants.ProjectConfigName)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				data, err := yaml.Marshal(config.DefaultConfig())
				if err != nil {
					return fmt.Errorf("failed to render default config: %w", err)
				}
				if err := os.WriteFile(configPath, data, 0o600); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
			}

			cmd.Printf("initialized pipeline state in %s\n", stateDir)
			return nil
		},
	}
	root.AddCommand(cmd)
}
