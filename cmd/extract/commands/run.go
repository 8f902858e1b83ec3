package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/bootstrap"
	"github.com/your-org/pdfvision/internal/domain"
)

var (
	runMethod   string
	runPerPage  bool
	runMaxPages int
	runOutput   string
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.pdf>",
	Short: "Extract text from a PDF file",
	Long: `Extract text from a PDF file and print it, or write it to --output.
Interrupting a page-by-page run prints the pages finished so far.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	runCmd.Flags().StringVarP(&runMethod, "method", "m", string(domain.ModeVision), "extraction method: vision or text")
	runCmd.Flags().BoolVar(&runPerPage, "per-page", true, "send pages to the model one at a time (vision only)")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "override extraction.max_pages")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the text to this file instead of stdout")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result with per-page details as JSON")
	rootCmd.AddCommand(runCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, err := domain.ParseMode(runMethod)
	if err != nil {
		return err
	}

	document, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	perPage := cfg.Extraction.ProcessPerPage
	if cmd.Flags().Changed("per-page") {
		perPage = runPerPage
	}
	req := bootstrap.Request(cfg, mode, perPage)
	if runMaxPages > 0 {
		req.MaxPages = runMaxPages
	}

	components := bootstrap.Build(cfg, log)
	result, extractErr := components.Usecase.Extract(ctx, document, req)
	if result == nil {
		return fmt.Errorf("extraction failed: %w", extractErr)
	}

	if err := writeResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if extractErr != nil {
		log.Warn("extraction interrupted, output is partial",
			zap.Int("pages_done", len(result.Pages)),
			zap.Int("total_pages", result.PageCount),
		)
		return extractErr
	}
	if failed := result.FailedPages(); failed > 0 {
		log.Warn("some pages could not be extracted", zap.Int("failed_pages", failed))
	}
	return nil
}

func writeResult(stdout io.Writer, result *domain.ExtractionResult) error {
	out := stdout
	if runOutput != "" {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", runOutput, err)
		}
		defer f.Close()
		out = f
	}

	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	_, err := fmt.Fprintln(out, result.FullText)
	return err
}
