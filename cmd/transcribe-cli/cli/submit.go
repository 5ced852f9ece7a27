package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	submitServerURL     string
	submitInstruments   []string
	submitEnableTTA     bool
	submitEnableRefiner bool
	submitParallel      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <file-or-url>",
	Short: "Submit a local file or URL for transcription",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitServerURL, "server", "", "server base URL (defaults to config/~/.transcriber.yaml)")
	submitCmd.Flags().StringSliceVar(&submitInstruments, "instruments", []string{"piano", "vocals", "drums", "bass", "guitar", "other"}, "instrument tags to transcribe")
	submitCmd.Flags().BoolVar(&submitEnableTTA, "tta", false, "enable test-time augmentation")
	submitCmd.Flags().BoolVar(&submitEnableRefiner, "refine", false, "enable learned note-roll refinement")
	submitCmd.Flags().BoolVar(&submitParallel, "parallel", false, "set the job's parallel_stems option (the pipeline processes stems in sequence either way)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	serverURL := resolveServerURL(submitServerURL)
	source := args[0]

	kind, value, err := classifySource(source)
	if err != nil {
		return userError(err)
	}

	resp, err := submitJob(serverURL, kind, value, submitInstruments, submitEnableTTA, submitEnableRefiner, submitParallel)
	if err != nil {
		return err
	}

	fmt.Printf("job submitted: %s (status=%s)\n", resp.JobID, resp.Status)
	fmt.Printf("stream: %s%s\n", serverURL, resp.WebsocketURL)
	return nil
}

func classifySource(source string) (kind, value string, err error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return "url", source, nil
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return "", "", fmt.Errorf("resolve path %q: %w", source, err)
	}
	if _, statErr := os.Stat(abs); statErr != nil {
		return "", "", fmt.Errorf("file does not exist: %s", abs)
	}
	return "upload", abs, nil
}

func resolveServerURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return GetConfig().ServerURL
}
