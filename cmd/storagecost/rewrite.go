package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/treasurydao/storagecost/internal/load"
	"github.com/treasurydao/storagecost/internal/wasm"
)

func rewriteCommand() *cobra.Command {
	var outPath string
	var compress bool

	command := &cobra.Command{
		Use:   "rewrite [path to module]",
		Short: "Rewrite a module to import its memory from the host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := load.LoadFile(args[0])
			if err != nil {
				return err
			}
			rewritten, err := wasm.Rewrite(code)
			if err != nil {
				return err
			}
			if compress {
				if rewritten, err = load.Compress(rewritten); err != nil {
					return err
				}
			}

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(rewritten)
				return err
			}
			if err := os.WriteFile(outPath, rewritten, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			return nil
		},
	}

	command.Flags().StringVarP(&outPath, "output", "o", "", "output path (default stdout)")
	command.Flags().BoolVar(&compress, "zstd", false, "compress the output with zstd")

	return command
}
