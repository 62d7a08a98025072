package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dvaldes/worklog/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent frontends record and query work time natively. Configure
with:

  {
    "mcpServers": {
      "worklog": { "command": "worklog", "args": ["mcp"] }
    }
  }

Available tools: worklog_start_session, worklog_pause_session,
worklog_resume_session, worklog_finish_session, worklog_create_entry,
worklog_list_sessions, worklog_report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		m, err := getTracker()
		if err != nil {
			return err
		}
		return mcp.NewServer(s, m).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
