package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/output"
	"github.com/dvaldes/worklog/internal/tracker"
)

var (
	sessionCollaborator string
	sessionProject      string
	sessionService      string
	sessionDesc         string
	sessionActor        string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new work session",
	Long: `Start a new timed work session against a project/service.

Rejected when you already hold more than the permitted number of open
(active or paused) sessions; see 'sessions.max_open' in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startRun()
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <session-id>",
	Short: "Pause an active session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionRun(args[0], "paused", func(ctx context.Context, m *tracker.Manager, id, desc, actor string) (*models.Session, error) {
			return m.Pause(ctx, id, desc, actor)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionRun(args[0], "resumed", func(ctx context.Context, m *tracker.Manager, id, desc, actor string) (*models.Session, error) {
			return m.Resume(ctx, id, desc, actor)
		})
	},
}

var finishCmd = &cobra.Command{
	Use:   "finish <session-id>",
	Short: "Finish an active session",
	Long:  "Finish an active session. A paused session must be resumed first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionRun(args[0], "finished", func(ctx context.Context, m *tracker.Manager, id, desc, actor string) (*models.Session, error) {
			return m.Finish(ctx, id, desc, actor)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(args[0])
	},
}

func init() {
	startCmd.Flags().StringVarP(&sessionCollaborator, "collaborator", "c", "", "Collaborator id (default from config)")
	startCmd.Flags().StringVarP(&sessionProject, "project", "p", "", "Project id (required)")
	startCmd.Flags().StringVarP(&sessionService, "service", "s", "", "Service id (required)")
	startCmd.Flags().StringVar(&sessionDesc, "desc", "", "Session description")
	startCmd.Flags().StringVar(&sessionActor, "actor", "", "Audit actor (default: collaborator)")
	_ = startCmd.MarkFlagRequired("project")
	_ = startCmd.MarkFlagRequired("service")

	for _, c := range []*cobra.Command{pauseCmd, resumeCmd, finishCmd} {
		c.Flags().StringVar(&sessionDesc, "desc", "", "Updated description")
		c.Flags().StringVar(&sessionActor, "actor", "", "Audit actor (default from config)")
	}

	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, finishCmd, showCmd)
}

func startRun() error {
	m, err := getTracker()
	if err != nil {
		return err
	}
	collaborator, err := defaultCollaborator(sessionCollaborator)
	if err != nil {
		return err
	}

	sess, err := m.Start(context.Background(), tracker.StartInput{
		CollaboratorID: collaborator,
		ProjectID:      sessionProject,
		ServiceID:      sessionService,
		Description:    sessionDesc,
		Actor:          defaultActor(sessionActor, collaborator),
	})
	if err != nil {
		return err
	}

	ui.Success("Started session %s on project %s", output.Cyan(sess.ID), sess.ProjectID)
	return nil
}

func transitionRun(id, verb string, op func(ctx context.Context, m *tracker.Manager, id, desc, actor string) (*models.Session, error)) error {
	m, err := getTracker()
	if err != nil {
		return err
	}
	collaborator, _ := defaultCollaborator("")

	sess, err := op(context.Background(), m, id, sessionDesc, defaultActor(sessionActor, collaborator))
	if err != nil {
		return err
	}

	ui.Success("Session %s %s (%s recorded)", output.Cyan(sess.ID), verb, sess.DurationString())
	return nil
}

func showRun(id string) error {
	m, err := getTracker()
	if err != nil {
		return err
	}

	sess, err := m.Get(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Session:      %s\n", output.Cyan(sess.ID))
	fmt.Fprintf(ui.Out, "Collaborator: %s\n", sess.CollaboratorID)
	fmt.Fprintf(ui.Out, "Project:      %s\n", sess.ProjectID)
	fmt.Fprintf(ui.Out, "Service:      %s\n", sess.ServiceID)
	fmt.Fprintf(ui.Out, "State:        %s\n", output.StateColor(string(sess.State)))
	fmt.Fprintf(ui.Out, "Recorded:     %s\n", sess.DurationString())
	fmt.Fprintf(ui.Out, "Started:      %s\n", sess.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if sess.FinishedAt != nil {
		fmt.Fprintf(ui.Out, "Finished:     %s\n", sess.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if sess.Description != "" {
		fmt.Fprintf(ui.Out, "Description:  %s\n", sess.Description)
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"EVENT", "AT", "DELTA", "ACTOR"})
	for _, e := range sess.Events {
		delta := ""
		if e.DeltaMinutesTotal() > 0 {
			delta = fmt.Sprintf("%dh%02dm", e.DeltaHours, e.DeltaMinutes)
		}
		_ = table.Append([]string{string(e.Type), e.OccurredAt.Format("2006-01-02 15:04:05"), delta, e.Actor})
	}
	return table.Render()
}
