package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/pdfvision/internal/pdfinfo"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info <file.pdf>",
	Short: "Show page count and how many pages an extraction would process",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	document, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	info, err := pdfinfo.Inspect(document)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if infoJSON {
		return json.NewEncoder(out).Encode(struct {
			pdfinfo.Info
			PagesToProcess int `json:"pages_to_process"`
		}{info, info.PagesToProcess(cfg.Extraction.MaxPages)})
	}

	fmt.Fprintf(out, "File:             %s\n", args[0])
	fmt.Fprintf(out, "Size:             %d bytes\n", info.SizeBytes)
	fmt.Fprintf(out, "Pages:            %d\n", info.PageCount)
	fmt.Fprintf(out, "Encrypted:        %t\n", info.Encrypted)
	fmt.Fprintf(out, "Pages to process: %d (max_pages=%d)\n", info.PagesToProcess(cfg.Extraction.MaxPages), cfg.Extraction.MaxPages)
	return nil
}
