package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/config"
	"github.com/your-org/pdfvision/pkg/logger"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from PDF documents with a vision model",
	Long: `extract runs the same pipeline as the HTTP service against local files.
Pages are rendered to images and sent to the configured Ollama model, or the
embedded text layer is read and cleaned up by the model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		logCfg := cfg.Log
		logCfg.Development = true
		if err := logger.Init(logCfg, cfg.Debug || verbose); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = logger.Get()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
