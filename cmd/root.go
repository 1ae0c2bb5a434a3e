package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	configs "github.com/thirdweb-dev/archive-exporter/configs"
	"github.com/thirdweb-dev/archive-exporter/internal/env"
	customLogger "github.com/thirdweb-dev/archive-exporter/internal/log"
)

var (
	// Used for flags.
	cfgFile   string
	configErr error

	rootCmd = &cobra.Command{
		Use:   "archive-exporter",
		Short: "Export blockchain history from a Subsquid archive to parquet files",
		Long: "archive-exporter pages through a Subsquid archive for one dataset and block range " +
			"and writes the requested fields as compressed parquet files, one per chunk.",
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().String("archive-url", "", "Archive network URL, e.g. https://v2.archive.subsquid.io/network/ethereum-mainnet")
	rootCmd.PersistentFlags().Int("archive-request-timeout", 0, "Archive request timeout in milliseconds")
	rootCmd.PersistentFlags().Int("archive-retry-max-attempts", 0, "How many times an archive request is attempted before giving up")
	rootCmd.PersistentFlags().Bool("metrics-enabled", false, "Serve prometheus metrics while exporting")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address of the metrics server")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("archive.url", rootCmd.PersistentFlags().Lookup("archive-url"))
	viper.BindPFlag("archive.requestTimeout", rootCmd.PersistentFlags().Lookup("archive-request-timeout"))
	viper.BindPFlag("archive.retry.maxAttempts", rootCmd.PersistentFlags().Lookup("archive-retry-max-attempts"))
	viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	rootCmd.AddCommand(exportCmd)
}

func initConfig() {
	// surfaced by the command so cobra prints it with the usual error prefix
	configErr = env.Load()
	if configErr == nil {
		configErr = configs.LoadConfig(cfgFile)
	}
	customLogger.InitLogger()
}
