package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-ejector/pkg/config"
)

var (
	log = logrus.New()

	envFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "validator-ejector",
	Short: "Ejects validators on exit requests.",
	Long: `Watches the execution layer for validator exit requests and initiates
the exit of every requested validator that is not exiting yet.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initCommon()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an env file loaded before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides LOGGER_LEVEL")
}

func initCommon() error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	if logLevel != "" {
		return setLogLevel(logLevel)
	}

	return nil
}
