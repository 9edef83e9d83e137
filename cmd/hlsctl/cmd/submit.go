package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var followSubmit bool

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit <video-file>",
	Short: "Upload a video for HLS transcoding",
	Long:  `Upload a video file to the server. The server answers immediately with a job id; use status or watch to follow progress.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVar(&followSubmit, "follow", false, "poll job progress until completion after submitting")
}

type submitResponse struct {
	JobID string `json:"jobId"`
	Error string `json:"error,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	writer.Close()

	url := fmt.Sprintf("%s/api/video/process", GetServerURL())
	req, err := http.NewRequest("POST", url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := &http.Client{Timeout: 10 * time.Minute} // uploads can be large
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Field", "Value")
		table.Append("Job ID", result.JobID)
		table.Append("File", filepath.Base(path))
		table.Append("Submitted At", time.Now().Format(time.RFC3339))
		table.Render()
	}

	if followSubmit {
		return pollUntilDone(result.JobID)
	}
	return nil
}
