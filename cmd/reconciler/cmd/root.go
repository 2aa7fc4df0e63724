// Package cmd wires the reconciliation service into a cobra CLI: run a
// settlement cycle, roll state back, query a persisted run, and inspect
// the audit trail.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upi-reconciliation-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "UPI multi-source reconciliation tool",
	Long: `Reconciler matches UPI transactions across the CBS extract, the switch
log and the NPCI raw file for one settlement cycle, emits the report and
annexure set, and generates the settlement vouchers and TTUM files.

Examples:
  reconciler run --run-id RUN-20260104 --cbs-file cbs.csv \
    --switch-file switch.csv --npci-file ISSRP2PAXIS040126_1C.csv
  reconciler rollback --run-id RUN-20260104 --level CYCLE_WISE --cycle 1C
  reconciler lookup --run-id RUN-20260104 --rrn 400000000001
  reconciler audit --run-id RUN-20260104`,
	Version: getVersionString(),

	// Errors flow to the CLI error handler in main, which prints the
	// message, context and suggestion once and picks the exit code.
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI; main owns printing the error and choosing the
// exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("output-dir", "output", "root of the run output tree")
	rootCmd.PersistentFlags().String("log-file", "", "append logs to a file instead of stderr")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads the config file and RECONCILER_* environment variables,
// then rebuilds the global logger from the resolved logging keys.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	initLogger()
}

// initLogger resolves the logging configuration: --verbose picks the debug
// preset, and log_level / log_format / log_file override individual knobs.
func initLogger() {
	cfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		cfg = logger.DebugConfig()
	}
	if lvl := viper.GetString("log_level"); lvl != "" {
		cfg.Level = logger.Level(lvl)
	}
	if format := viper.GetString("log_format"); format != "" {
		cfg.Format = logger.Format(format)
	}
	if file := viper.GetString("log_file"); file != "" {
		cfg.Output = logger.FileOutput
		cfg.File = file
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)
}

// SetVersionInfo receives the build-time version stamps from main.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
