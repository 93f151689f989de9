// Package cmd provides the CLI commands for docquery.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docquery/docquery/internal/answer"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/embed"
	"github.com/docquery/docquery/internal/logging"
	"github.com/docquery/docquery/internal/service"
	"github.com/docquery/docquery/pkg/version"
)

var (
	namespaceFlag string
	debugFlag     bool
)

// NewRootCmd creates the root command for the docquery CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docquery",
		Short: "Document ingestion and hybrid retrieval for question answering",
		Long: `docquery indexes documents (pdf, txt, doc/docx, xls/xlsx) and web
pages into per-namespace hybrid indexes, then answers questions over
them by fusing semantic and keyword retrieval.

Typical flow:

  docquery sync                 index new files in the docs directory
  docquery search "query"       inspect raw retrieval results
  docquery ask "question"       retrieve and generate a grounded answer`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docquery version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&namespaceFlag, "namespace", "u", "default",
		"Namespace (isolation unit) to operate on")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves configuration from the working directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogging configures the default logger from config and returns
// its cleanup function.
func setupLogging(cfg *config.Config) (*slog.Logger, func()) {
	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	logCfg.WriteToStderr = debugFlag

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Fall back to stderr-only logging rather than failing the
		// command over an unwritable log file.
		fmt.Fprintf(os.Stderr, "warning: file logging unavailable: %v\n", err)
		logger, cleanup, _ = logging.Setup(logging.Config{Level: logCfg.Level})
	}
	slog.SetDefault(logger)
	return logger, cleanup
}

// newService wires the full service stack. withAnswers also configures
// the answer generator (needed by ask, not by sync/search).
func newService(withAnswers bool) (*service.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, logCleanup := setupLogging(cfg)

	embedder, err := embed.NewFromConfig(cfg.Embeddings)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}

	var generator service.AnswerGenerator
	if withAnswers {
		generator = answer.NewGenerator(answer.Config{
			BaseURL:       cfg.Answer.BaseURL,
			Model:         cfg.Answer.Model,
			APIKey:        cfg.Answer.APIKey,
			HistoryWindow: cfg.Answer.HistoryWindow,
			Temperature:   cfg.Answer.Temperature,
		})
	}

	svc, err := service.New(cfg, embedder, service.Backends{}, generator, logger)
	if err != nil {
		_ = embedder.Close()
		logCleanup()
		return nil, nil, err
	}

	cleanup := func() {
		svc.Close()
		_ = embedder.Close()
		logCleanup()
	}
	return svc, cleanup, nil
}
