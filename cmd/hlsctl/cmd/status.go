package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job progress or final result",
	Long: `Poll the server once for a job. While the job runs this shows progress and
the estimated remaining time. The first poll after completion returns the
final result; the server forgets the job after that.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// pollResponse covers both poll payload shapes: the in-progress snapshot
// and the terminal outcome. Success is a pointer so its absence marks an
// in-progress response.
type pollResponse struct {
	InProgress bool   `json:"inProgress"`
	Progress   int    `json:"progress"`
	Remaining  string `json:"remaining,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	StreamURL  string `json:"streamUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (p pollResponse) terminal() bool {
	return p.Success != nil
}

func fetchProgress(jobID string) (pollResponse, error) {
	var result pollResponse

	url := fmt.Sprintf("%s/api/video/progress/%s", GetServerURL(), jobID)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return result, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("failed to parse response: %w", err)
	}
	return result, nil
}

func renderPoll(jobID string, p pollResponse) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", jobID)
	if p.terminal() {
		if *p.Success {
			table.Append("Status", "completed")
			table.Append("Stream URL", p.StreamURL)
		} else {
			table.Append("Status", "failed")
			table.Append("Error", p.Error)
		}
	} else {
		table.Append("Status", "in progress")
		table.Append("Progress", fmt.Sprintf("%d%%", p.Progress))
		if p.Remaining != "" {
			table.Append("Remaining", p.Remaining)
		}
	}
	table.Render()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	result, err := fetchProgress(jobID)
	if err != nil {
		return err
	}
	return renderPoll(jobID, result)
}
