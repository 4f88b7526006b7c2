package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stock-reconciler/cmd/stockrecon/config"
	"stock-reconciler/pkg/logger"
)

var (
	cfgFile   string
	configErr error
	settings  *config.Settings
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// interactive marks commands that own the terminal
const interactive = "interactive"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockrecon",
	Short: "Stock reconciliation tool",
	Long: `Stockrecon compares a stock snapshot workbook with the movement workbooks
of each workshop of a production unit. Every reference is classified as a
match or a discrepancy, and opposite discrepancies that look like typing
mistakes can be reviewed and eliminated.

Examples:
  stockrecon units
  stockrecon match ./march
  stockrecon verify --unit Fath2 ./march
  stockrecon reconcile --unit Fath2 --eliminate-pairs --output-format json ./march
  stockrecon review --unit Fath2 ./march
  stockrecon watch --unit Fath2 ./inbox`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./stockrecon.yaml or ~/.config/stockrecon/stockrecon.yaml)")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output")
	flags.StringP(config.KeyUnit, "u", "", "production unit (default: first unit of the table)")
	flags.Int(config.KeyMonth, 0, "reporting month 1-12 when the stock filename has none")
	flags.Int(config.KeyYear, 0, "reporting year when the stock filename has none")
	flags.String(config.KeyUnitsFile, "", "YAML or TOML unit table replacing the built-in one")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "text", "log format: text, json")
	flags.String(config.KeyLogFile, "", "write logs to this file instead of stderr")

	for _, key := range []string{
		config.KeyVerbose, config.KeyUnit, config.KeyMonth, config.KeyYear, config.KeyUnitsFile,
		config.KeyLogLevel, config.KeyLogFormat, config.KeyLogFile,
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("stockrecon")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "stockrecon"))
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setup resolves the settings and installs the global logger. Interactive
// commands log to the configured file only.
func setup(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	settings = s

	logCfg := s.LoggerConfig()
	if cmd.Annotations[interactive] == "true" {
		logCfg = s.InteractiveLoggerConfig()
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	if f := viper.ConfigFileUsed(); f != "" {
		log.WithField("file", f).Debug("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
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
