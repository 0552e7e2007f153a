package commands

import (
	"errors"

	"regulatory_notifier/internal/domain/notification"
	"regulatory_notifier/internal/infra/config"
	"regulatory_notifier/internal/infra/logger"

	"github.com/spf13/cobra"
)

const (
	exitFatal    = 1
	exitDegraded = 2
)

var (
	// rulesFile overrides RULES_FILE.
	rulesFile string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Regulatory expiry notifier",
	Long: `notifier emails study teams and investigators about upcoming regulatory
expiries, marks each notified record in the database and appends every
outcome to the audit log. When a run sends nothing it emails a ping.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps the error returned by Execute to a process exit status:
// 1 for fatal errors and 2 for runs that finished with failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, notification.ErrDegraded):
		return exitDegraded
	default:
		return exitFatal
	}
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&rulesFile, "rules", "",
		"YAML job definitions (default: $RULES_FILE, else the built-in jobs)",
	)

	// Add subcommands.
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(credentialCmd)
}

// loadConfig loads the configuration, initializes the global logger and
// resolves the jobs.
func loadConfig() (*config.AppConfig, []notification.Job, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg)

	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	jobs, err := config.LoadJobs(cfg.RulesFile, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, jobs, nil
}
