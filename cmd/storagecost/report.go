package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/treasurydao/storagecost"
	"github.com/treasurydao/storagecost/internal/load"
	"github.com/treasurydao/storagecost/types"
)

func reportCommand(opts *rootOptions) *cobra.Command {
	var format string

	command := &cobra.Command{
		Use:   "report [path to module]",
		Short: "Measure every operation of the default menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			code, err := load.LoadFile(args[0])
			if err != nil {
				return err
			}

			estimator, err := storagecost.New(cfg, storagecost.WithLogger(logger))
			if err != nil {
				return err
			}
			defer estimator.Close(cmd.Context())

			report, err := estimator.EstimateReport(cmd.Context(), code)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}

	command.Flags().StringVar(&format, "format", "table", "output format: table, json or csv")

	return command
}

func writeReport(w io.Writer, format string, report types.Report) error {
	switch format {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OPERATION\tMETHOD\tBYTES")
		for _, row := range report {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", row.Operation, row.Method, row.Bytes)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		cw := csv.NewWriter(w)
		if err := csvutil.NewEncoder(cw).Encode(report); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
