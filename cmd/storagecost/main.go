// Command storagecost measures the storage cost of DAO operations on a
// compiled contract.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/treasurydao/storagecost/types"
)

var version = "<unknown>"

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	logLevel    string
	crypto      string
	parallelism int

	stderr io.Writer
}

// config loads the configuration file, if any, and applies flag overrides.
func (o *rootOptions) config(cmd *cobra.Command) (types.EstimatorConfig, error) {
	cfg := types.DefaultEstimatorConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = types.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("crypto") {
		cfg.Host.Crypto = types.CryptoMode(o.crypto)
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = o.parallelism
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) logger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("--log-level: %w", err)
	}
	out := zerolog.ConsoleWriter{Out: o.stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func configureCLI(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	rootCommand := &cobra.Command{
		Use:           "storagecost",
		Short:         "DAO storage cost estimator",
		Long:          "storagecost - measure the storage bytes consumed by DAO operations",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCommand.SetOut(stdout)
	rootCommand.SetErr(stderr)

	rootCommand.AddCommand(estimateCommand(opts))
	rootCommand.AddCommand(reportCommand(opts))
	rootCommand.AddCommand(rewriteCommand())
	rootCommand.AddCommand(inspectCommand())

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML or JSON configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error, disabled)")
	flags.StringVar(&opts.crypto, "crypto", string(types.CryptoStub), "crypto host functions: stub or native")
	flags.IntVar(&opts.parallelism, "parallelism", 1, "number of independent instances used by report runs")

	return rootCommand
}

func main() {
	rootCommand := configureCLI(os.Stdout, os.Stderr)

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
