package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// AddTodoCommand adds the todo command group to the root command.
func AddTodoCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage standalone finding records",
	}

	cmd.AddCommand(newTodoCreateCmd(flags))
	cmd.AddCommand(newTodoListCmd(flags))
	cmd.AddCommand(newTodoUpdateCmd(flags))
	cmd.AddCommand(newTodoResolveCmd(flags))
	cmd.AddCommand(newTodoSummaryCmd(flags))

	root.AddCommand(cmd)
}

// parseTodoStatus validates a todo status argument.
func parseTodoStatus(arg string) (constants.TodoStatus, error) {
	status := constants.TodoStatus(arg)
	switch status {
	case constants.TodoStatusOpen, constants.TodoStatusInProgress, constants.TodoStatusBlocked,
		constants.TodoStatusResolved, constants.TodoStatusWontFix:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", pipelineerrors.ErrInvalidArgument, arg)
	}
}

func newTodoCreateCmd(flags *GlobalFlags) *cobra.Command {
	var (
		priority string
		source   string
	)

	cmd := &cobra.Command{
		Use:   "create <category> <title>",
		Short: "Create a finding with the next identifier for its category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if priority == "" {
				priority = a.cfg.Todo.DefaultPriority
			}
			t, err := a.todos.Create(cmd.Context(), args[0], args[1], source, domain.Priority(priority))
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, t)
			}
			cmd.Printf("created %s (%s, %s)\n", t.ID, t.Priority, t.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority tier (P0..P3, defaults from config)")
	cmd.Flags().StringVar(&source, "source", "", "where the finding came from")
	return cmd
}

func newTodoListCmd(flags *GlobalFlags) *cobra.Command {
	var (
		status   string
		priority string
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List findings, most urgent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.TodoFilter{Category: category, Limit: limit}
			if status != "" {
				s, err := parseTodoStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			if priority != "" {
				p := domain.Priority(priority)
				if !p.IsValid() {
					return fmt.Errorf("%w: unknown priority %q", pipelineerrors.ErrInvalidArgument, priority)
				}
				filter.Priority = &p
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			todos, err := a.todos.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, todos)
			}
			for _, t := range todos {
				cmd.Printf("%-12s %-3s %-12s %s\n", t.ID, t.Priority, t.Status, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "filter by priority tier")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to return (0 = all)")
	return cmd
}

func newTodoUpdateCmd(flags *GlobalFlags) *cobra.Command {
	var (
		status   string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a finding's status or priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" && priority == "" {
				return fmt.Errorf("%w: provide --status or --priority", pipelineerrors.ErrInvalidArgument)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			var t *domain.Todo
			if status != "" {
				s, err := parseTodoStatus(status)
				if err != nil {
					return err
				}
				if t, err = a.todos.UpdateStatus(cmd.Context(), args[0], s); err != nil {
					return err
				}
			}
			if priority != "" {
				if t, err = a.todos.UpdatePriority(cmd.Context(), args[0], domain.Priority(priority)); err != nil {
					return err
				}
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, t)
			}
			cmd.Printf("%s is now %s (%s)\n", t.ID, t.Status, t.Priority)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "new status (open|in_progress|blocked)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority tier")
	return cmd
}

func newTodoResolveCmd(flags *GlobalFlags) *cobra.Command {
	var (
		notes   string
		wontFix bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Move a finding to a terminal status with notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			status := constants.TodoStatusResolved
			if wontFix {
				status = constants.TodoStatusWontFix
			}
			t, err := a.todos.Resolve(cmd.Context(), args[0], status, notes)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, t)
			}
			cmd.Printf("%s %s\n", t.ID, t.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes (required)")
	cmd.Flags().BoolVar(&wontFix, "wont-fix", false, "decline the finding instead of resolving it")
	_ = cmd.MarkFlagRequired("notes")
	return cmd
}

func newTodoSummaryCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show derived counts across all findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			summary, err := a.todos.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, summary)
			}
			cmd.Printf("total: %d\n", summary.Total)
			for _, p := range domain.ValidPriorities() {
				if n := summary.ByPriority[p]; n > 0 {
					cmd.Printf("  %s: %d\n", p, n)
				}
			}
			for status, n := range summary.ByStatus {
				cmd.Printf("  %s: %d\n", status, n)
			}
			return nil
		},
	}
}
