package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lintang-b-s/lintangdb/lib/config"
	"github.com/lintang-b-s/lintangdb/lib/logger"
)

var (
	rootCmd = &cobra.Command{
		Use:               "lintangdb",
		Short:             "A disk-oriented storage & concurrency engine",
		Long:              "lintangdb is a teaching storage engine: buffer pool, b+tree, extendible hash & wound-wait lock manager.",
		PersistentPreRunE: preRun,
	}

	configFile = ""
	logLevel   = ""
	dataDir    = ""

	cfg *config.Config
	lg  *log.Logger

	usedFlags = map[string]struct{}{}
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from (hcl)")
	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	fs.StringVar(&dataDir, "data-dir", dataDir, "`directory` to store page & log files")

	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

func preRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(func(flg *pflag.Flag) {
		usedFlags[flg.Name] = struct{}{}
	})

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("lintangdb: %w", err)
	}

	// cli flags override config file
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	lg = logger.New(cfg.LogLevel, os.Stderr)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
