package commands

import (
	"context"
	"fmt"

	"regulatory_notifier/internal/infra/config"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one notification job once",
	Long: `Run evaluates every rule of the named job, emails each candidate group,
marks delivered records sent and appends the outcomes to the audit log.

Exit status is 0 when the run sent its emails or had nothing to send, 1 on a
fatal error and 2 when the run finished with delivery failures.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, jobs, err := loadConfig()
	if err != nil {
		return err
	}
	job, err := config.FindJob(jobs, args[0])
	if err != nil {
		return err
	}

	launcher, journal, err := newLauncher(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout)
	defer cancel()

	summary, err := launcher.Execute(ctx, job)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d candidate(s), %d sent, pinged=%t\n",
		job.Name, summary.Candidates, summary.Sent, summary.Pinged)
	return nil
}
