package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dvaldes/worklog/internal/report"
)

var (
	reportCollaborator string
	reportProject      string
	reportFrom         string
	reportTo           string
	reportSummarize    bool

	exportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate recorded time per project and collaborator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRun()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions as JSON, CSV, Markdown, or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportCollaborator, "collaborator", "c", "", "Filter by collaborator id")
	reportCmd.Flags().StringVarP(&reportProject, "project", "p", "", "Filter by project id")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start of date range (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End of date range, inclusive (YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportSummarize, "summarize", false, "Generate a natural-language summary (needs anthropic.api_key)")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, csv, markdown, yaml")
	exportCmd.Flags().StringVarP(&listCollaborator, "collaborator", "c", "", "Filter by collaborator id")

	rootCmd.AddCommand(reportCmd, exportCmd)
}

func reportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	filter, err := buildFilter(listOptions{
		collaborator: reportCollaborator,
		project:      reportProject,
		from:         reportFrom,
		to:           reportTo,
	})
	if err != nil {
		return err
	}
	ctx := context.Background()

	sessions, err := s.ListSessions(ctx, filter)
	if err != nil {
		return err
	}

	r := report.Build(sessions, filter.DateFrom, filter.DateTo)

	ui.Info("%d sessions (%d open), %dh%02dm recorded", r.Sessions, r.OpenSessions, r.Hours, r.Minutes)
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"PROJECT", "SESSIONS", "RECORDED"})
	for _, t := range r.ByProject {
		_ = table.Append([]string{t.Key, fmt.Sprintf("%d", t.Sessions), fmt.Sprintf("%dh%02dm", t.Hours, t.Minutes)})
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(ui.Out)
	table = ui.Table([]string{"COLLABORATOR", "SESSIONS", "RECORDED"})
	for _, t := range r.ByCollaborator {
		_ = table.Append([]string{t.Key, fmt.Sprintf("%d", t.Sessions), fmt.Sprintf("%dh%02dm", t.Hours, t.Minutes)})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if reportSummarize {
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			ui.Warning("No anthropic.api_key configured; skipping summary")
			return nil
		}
		summarizer := report.NewSummarizer(apiKey, viper.GetString("anthropic.model"))
		summary, err := summarizer.Summarize(ctx, r)
		if err != nil {
			return fmt.Errorf("summarize report: %w", err)
		}
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, summary)
	}
	return nil
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	filter, err := buildFilter(listOptions{collaborator: listCollaborator})
	if err != nil {
		return err
	}

	sessions, err := s.ListSessions(context.Background(), filter)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	case "yaml":
		enc := yaml.NewEncoder(ui.Out)
		defer func() { _ = enc.Close() }()
		return enc.Encode(sessions)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Collaborator", "Project", "Service", "State", "Hours", "Minutes", "Started", "Finished"})
		for _, sess := range sessions {
			finished := ""
			if sess.FinishedAt != nil {
				finished = sess.FinishedAt.Format("2006-01-02 15:04")
			}
			_ = w.Write([]string{
				sess.ID, sess.CollaboratorID, sess.ProjectID, sess.ServiceID, string(sess.State),
				fmt.Sprintf("%d", sess.AccumulatedHours), fmt.Sprintf("%d", sess.AccumulatedMinutes),
				sess.StartedAt.Format("2006-01-02 15:04"), finished,
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Sessions")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Collaborator | Project | Service | State | Recorded | Started |")
		fmt.Fprintln(ui.Out, "|--------------|---------|---------|-------|----------|---------|")
		for _, sess := range sessions {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s | %s |\n",
				sess.CollaboratorID, sess.ProjectID, sess.ServiceID, sess.State,
				sess.DurationString(), sess.StartedAt.Format("2006-01-02"))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown, yaml)", exportFormat)
	}
}
