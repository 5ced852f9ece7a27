package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusServerURL string

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Poll a job's current status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServerURL, "server", "", "server base URL (defaults to config/~/.transcriber.yaml)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	serverURL := resolveServerURL(statusServerURL)
	rec, err := fetchJob(serverURL, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("job:      %s\n", rec.JobID)
	fmt.Printf("status:   %s\n", rec.Status)
	fmt.Printf("progress: %d%% (%s)\n", rec.Progress, rec.Stage)
	if len(rec.Artifacts) > 0 {
		fmt.Println("artifacts:")
		for tag := range rec.Artifacts {
			fmt.Printf("  - %s\n", tag)
		}
	}
	if rec.Error != nil {
		fmt.Printf("error:    %v\n", rec.Error)
	}
	return nil
}
