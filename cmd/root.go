package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/notify"
	"github.com/dvaldes/worklog/internal/output"
	"github.com/dvaldes/worklog/internal/store"
	"github.com/dvaldes/worklog/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	dataStore  store.Store
	trackerMgr *tracker.Manager

	verbose bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "worklog",
	Short: "Track work sessions against projects and services",
	Long: `worklog records timed work sessions for a consulting team.
Collaborators start, pause, resume, and finish sessions; elapsed time is
reconstructed from each session's event log and reported per project.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/worklog/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "worklog")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WORKLOG")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "worklog")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "worklog.db"))
	viper.SetDefault("collaborator", "")
	viper.SetDefault("sessions.max_open", tracker.DefaultMaxOpenSessions)
	viper.SetDefault("notifications.enabled", false)
	viper.SetDefault("serve.port", 8484)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Store and tracker are initialized lazily so config/version commands
	// run without a db.
}

// rootRun handles `worklog` with no subcommand: show open sessions.
func rootRun(cmd *cobra.Command) error {
	if _, err := getStore(); err != nil {
		return cmd.Help()
	}
	return listRun(listOptions{openOnly: true})
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getTracker returns the shared lifecycle manager, initializing it on first call.
func getTracker() (*tracker.Manager, error) {
	if trackerMgr != nil {
		return trackerMgr, nil
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if viper.GetBool("notifications.enabled") {
		dir := notify.StaticDirectory{}
		for id, email := range viper.GetStringMapString("collaborator_emails") {
			dir[id] = models.CollaboratorRef{ID: id, DisplayName: id, Email: email}
		}
		notifier = notify.NewMailNotifier(notify.LogMailer{}, dir, nil)
	}

	trackerMgr = tracker.NewManager(s, tracker.SystemClock{}, notifier, viper.GetInt("sessions.max_open"))
	return trackerMgr, nil
}

// defaultCollaborator resolves the collaborator for commands where the flag
// was not given.
func defaultCollaborator(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if c := viper.GetString("collaborator"); c != "" {
		return c, nil
	}
	return "", fmt.Errorf("no collaborator given: use --collaborator or set 'collaborator' in config")
}

// defaultActor resolves the audit actor: explicit flag, else collaborator.
func defaultActor(flagValue, collaborator string) string {
	if flagValue != "" {
		return flagValue
	}
	return collaborator
}
