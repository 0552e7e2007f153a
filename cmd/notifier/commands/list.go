package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured jobs and their rules",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	_, jobs, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSCHEDULE\tRULE\tDAYS\tTABLE\tSENT COLUMN")
	for _, j := range jobs {
		schedule := j.Schedule
		if schedule == "" {
			schedule = "-"
		}
		if len(j.Rules) == 0 {
			fmt.Fprintf(w, "%s\t%s\t(ping only)\t\t\t\n", j.Name, schedule)
			continue
		}
		for _, r := range j.Rules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				j.Name, schedule, r.Name, r.DaysBeforeExpiry, r.Schema.Table, r.Schema.SentColumn)
		}
	}
	return w.Flush()
}
