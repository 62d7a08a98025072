package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvaldes/worklog/internal/output"
	"github.com/dvaldes/worklog/internal/store"
)

var (
	listCollaborator   string
	listProject        string
	listFrom           string
	listTo             string
	listOpen           bool
	listIncludeDeleted bool
)

type listOptions struct {
	collaborator   string
	project        string
	from           string
	to             string
	openOnly       bool
	includeDeleted bool
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRun(listOptions{
			collaborator:   listCollaborator,
			project:        listProject,
			from:           listFrom,
			to:             listTo,
			openOnly:       listOpen,
			includeDeleted: listIncludeDeleted,
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listCollaborator, "collaborator", "c", "", "Filter by collaborator id")
	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "Filter by project id")
	listCmd.Flags().StringVar(&listFrom, "from", "", "Start of date range (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "End of date range, inclusive (YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listOpen, "open", false, "Only sessions not yet finished")
	listCmd.Flags().BoolVar(&listIncludeDeleted, "include-deleted", false, "Include soft-deleted sessions")
	rootCmd.AddCommand(listCmd)
}

func buildFilter(opts listOptions) (store.SessionFilter, error) {
	filter := store.SessionFilter{
		CollaboratorID:  opts.collaborator,
		ProjectID:       opts.project,
		NonFinishedOnly: opts.openOnly,
		IncludeDeleted:  opts.includeDeleted,
	}
	if opts.from != "" {
		t, err := time.Parse("2006-01-02", opts.from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", opts.from)
		}
		filter.DateFrom = &t
	}
	if opts.to != "" {
		t, err := time.Parse("2006-01-02", opts.to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", opts.to)
		}
		filter.DateTo = &t
	}
	return filter, nil
}

func listRun(opts listOptions) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	sessions, err := s.ListSessions(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ui.Info("No sessions found")
		return nil
	}

	table := ui.Table([]string{"ID", "COLLABORATOR", "PROJECT", "SERVICE", "STATE", "RECORDED", "STARTED"})
	for _, sess := range sessions {
		_ = table.Append([]string{
			sess.ID,
			sess.CollaboratorID,
			sess.ProjectID,
			sess.ServiceID,
			output.StateColor(string(sess.State)),
			sess.DurationString(),
			sess.StartedAt.Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}
