package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/constants"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// AddSessionCommand adds the session command group to the root command.
func AddSessionCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage work sessions with crash recovery",
	}

	cmd.AddCommand(newSessionInitCmd(flags))
	cmd.AddCommand(newSessionStatusCmd(flags))
	cmd.AddCommand(newSessionResumeCmd(flags))
	cmd.AddCommand(newSessionCheckpointCmd(flags))
	cmd.AddCommand(newSessionEndCmd(flags))

	root.AddCommand(cmd)
}

func newSessionInitCmd(flags *GlobalFlags) *cobra.Command {
	var (
		branch   string
		takeover bool
	)

	cmd := &cobra.Command{
		Use:   "init <plan>",
		Short: "Start a new session for a work plan",
		Long: `Starts a new active session. At most one session may be active per
project; if one is, init fails unless --takeover records the stale
session as crashed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			sess, err := a.sessions.Init(cmd.Context(), args[0], branch, takeover)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, sess)
			}
			cmd.Printf("session %s started for plan %s\n", sess.ID, sess.Plan)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "VCS branch the session works on")
	cmd.Flags().BoolVar(&takeover, "takeover", false, "end a stale active session as crashed and start fresh")
	return cmd
}

func newSessionStatusCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show crash-detection status and the latest session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			check, err := a.sessions.CheckCrashed(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, check)
			}
			if check.HasCrashedSession {
				cmd.Println("crashed session detected")
			}
			cmd.Println(check.Recommendation)
			return nil
		},
	}
}

func newSessionResumeCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Recover from a crashed session",
		Long: `Records the crashed session, starts a fresh session for the same plan,
and reports the task to resume at. Tasks completed by the crashed
session stay completed and are never re-executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			sess, resumeTask, err := a.sessions.Resume(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]any{
					"session":        sess,
					"resume_task_id": resumeTask,
				})
			}
			cmd.Printf("session %s started\n", sess.ID)
			if resumeTask != "" {
				cmd.Printf("resume at task %s\n", resumeTask)
			}
			return nil
		},
	}
}

func newSessionCheckpointCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Refresh the active session's checkpoint timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return a.sessions.Checkpoint(cmd.Context())
		},
	}
}

func newSessionEndCmd(flags *GlobalFlags) *cobra.Command {
	var (
		status  string
		summary string
	)

	cmd := &cobra.Command{
		Use:   "end",
		Short: "End the active session and record it in the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var target constants.SessionStatus
			switch status {
			case "completed":
				target = constants.SessionStatusCompleted
			case "paused":
				target = constants.SessionStatusPaused
			case "crashed":
				target = constants.SessionStatusCrashed
			default:
				return fmt.Errorf("%w: status %q must be completed, paused, or crashed",
					pipelineerrors.ErrInvalidArgument, status)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			sess, err := a.sessions.End(cmd.Context(), target, summary)
			if err != nil {
				return err
			}

			slog, err := a.sessions.Log(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.history.Append(cmd.Context(), sess, slog.Tasks); err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, sess)
			}
			cmd.Printf("session %s ended as %s (%d completed, %d failed)\n",
				sess.ID, sess.Status, sess.TasksCompleted, sess.TasksFailed)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "completed", "terminal status (completed|paused|crashed)")
	cmd.Flags().StringVar(&summary, "summary", "", "free-text summary recorded in the history")
	return cmd
}
