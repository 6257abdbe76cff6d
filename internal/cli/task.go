package cli

import (
	"github.com/spf13/cobra"
)

// AddTaskCommand adds the task command group to the root command.
func AddTaskCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Drive task state under the active session",
	}

	cmd.AddCommand(newTaskStartCmd(flags))
	cmd.AddCommand(newTaskCompleteCmd(flags))
	cmd.AddCommand(newTaskFailCmd(flags))
	cmd.AddCommand(newTaskBlockCmd(flags))
	cmd.AddCommand(newTaskShowCmd(flags))

	root.AddCommand(cmd)
}

func newTaskStartCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start <task-id>",
		Short: "Move a task into in_progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			task, err := a.sessions.StartTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, task)
			}
			cmd.Printf("task %s in progress (attempt %d)\n", task.ID, task.Attempts)
			return nil
		},
	}
}

func newTaskCompleteCmd(flags *GlobalFlags) *cobra.Command {
	var (
		resources []string
		commits   []string
	)

	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete the in-flight task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			task, err := a.sessions.CompleteTask(cmd.Context(), args[0], resources, commits)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, task)
			}
			cmd.Printf("task %s completed\n", task.ID)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&resources, "resources", nil, "identifiers of resources the task modified")
	cmd.Flags().StringSliceVar(&commits, "commits", nil, "commit identifiers the task produced")
	return cmd
}

func newTaskFailCmd(flags *GlobalFlags) *cobra.Command {
	var errMsg string

	cmd := &cobra.Command{
		Use:   "fail <task-id>",
		Short: "Fail the in-flight task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			task, err := a.sessions.FailTask(cmd.Context(), args[0], errMsg)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, task)
			}
			cmd.Printf("task %s failed (attempt %d)\n", task.ID, task.Attempts)
			return nil
		},
	}

	cmd.Flags().StringVar(&errMsg, "error", "", "failure message recorded on the task")
	return cmd
}

func newTaskBlockCmd(flags *GlobalFlags) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block <task-id>",
		Short: "Block a task on an external condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			task, err := a.sessions.BlockTask(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, task)
			}
			cmd.Printf("task %s blocked: %s\n", task.ID, task.BlockedReason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the task is blocked (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newTaskShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			task, err := a.sessions.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, task)
		},
	}
}
