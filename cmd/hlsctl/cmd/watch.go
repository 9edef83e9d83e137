package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Poll a job until it finishes",
	Long:  `Poll the server until the job reaches a terminal state, printing progress along the way.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	return pollUntilDone(args[0])
}

// pollUntilDone polls until a terminal outcome arrives, then renders it.
// Progress lines go to stdout so the command can sit in a terminal while a
// long transcode runs.
func pollUntilDone(jobID string) error {
	interval := watchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		result, err := fetchProgress(jobID)
		if err != nil {
			return err
		}
		if result.terminal() {
			return renderPoll(jobID, result)
		}

		if !IsJSONOutput() {
			if result.Remaining != "" {
				fmt.Printf("Job %s: %d%% (remaining %s)\n", jobID, result.Progress, result.Remaining)
			} else {
				fmt.Printf("Job %s: %d%%\n", jobID, result.Progress)
			}
		}
		time.Sleep(interval)
	}
}
