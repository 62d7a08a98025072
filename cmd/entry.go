package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvaldes/worklog/internal/output"
	"github.com/dvaldes/worklog/internal/tracker"
)

var (
	entryCollaborator string
	entryProject      string
	entryService      string
	entryDate         string
	entryHours        int
	entryMinutes      int
	entryDesc         string
	entryActor        string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage manual time entries",
	Long:  "Record retroactive work time without live tracking.",
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a manual time entry",
	Long: `Record retroactive time as a session created directly in the finished
state. The entry never becomes active, so it does not count against the
open-session limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryAddRun()
	},
}

func init() {
	entryAddCmd.Flags().StringVarP(&entryCollaborator, "collaborator", "c", "", "Collaborator id (default from config)")
	entryAddCmd.Flags().StringVarP(&entryProject, "project", "p", "", "Project id (required)")
	entryAddCmd.Flags().StringVarP(&entryService, "service", "s", "", "Service id (required)")
	entryAddCmd.Flags().StringVar(&entryDate, "date", "", "Entry date, YYYY-MM-DD (default today)")
	entryAddCmd.Flags().IntVar(&entryHours, "hours", 0, "Whole hours worked")
	entryAddCmd.Flags().IntVar(&entryMinutes, "minutes", 0, "Minutes worked, 0-59")
	entryAddCmd.Flags().StringVar(&entryDesc, "desc", "", "Entry description")
	entryAddCmd.Flags().StringVar(&entryActor, "actor", "", "Audit actor (default: collaborator)")
	_ = entryAddCmd.MarkFlagRequired("project")
	_ = entryAddCmd.MarkFlagRequired("service")

	entryCmd.AddCommand(entryAddCmd)
	rootCmd.AddCommand(entryCmd)
}

func entryAddRun() error {
	m, err := getTracker()
	if err != nil {
		return err
	}
	collaborator, err := defaultCollaborator(entryCollaborator)
	if err != nil {
		return err
	}

	date := time.Now().UTC()
	if entryDate != "" {
		date, err = time.Parse("2006-01-02", entryDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", entryDate)
		}
	}

	sess, err := m.CreateManualEntry(context.Background(), tracker.ManualEntryInput{
		CollaboratorID: collaborator,
		ProjectID:      entryProject,
		ServiceID:      entryService,
		Date:           date,
		Hours:          entryHours,
		Minutes:        entryMinutes,
		Description:    entryDesc,
		Actor:          defaultActor(entryActor, collaborator),
	})
	if err != nil {
		return err
	}

	ui.Success("Recorded %s on project %s (entry %s)", sess.DurationString(), sess.ProjectID, output.Cyan(sess.ID))
	return nil
}
