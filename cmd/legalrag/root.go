package main

import (
	"github.com/spf13/cobra"

	"legalrag/internal/config"
	"legalrag/internal/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
	log      logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "legalrag",
		Short: "Segment legal judgments into chunks and search them",
		Long: `legalrag turns a directory of plain-text legal judgments into
paragraph-aware chunks, indexes them for hybrid dense and keyword search,
and serves an interactive search UI.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/legalrag/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newChunkCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newVerifyCmd(a),
	)
	return root
}

func (a *app) load() error {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if a.cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(a.cfgPath)
		path = a.cfgPath
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.New(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	a.log.Debug("config loaded", "path", path)
	return nil
}
