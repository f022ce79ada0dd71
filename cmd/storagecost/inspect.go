package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/treasurydao/storagecost/internal/load"
	"github.com/treasurydao/storagecost/internal/wasm"
)

func inspectCommand() *cobra.Command {
	var rewrite bool

	command := &cobra.Command{
		Use:   "inspect [path to module]",
		Short: "Print the sections, imports and exports of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := load.LoadFile(args[0])
			if err != nil {
				return err
			}
			if rewrite {
				if code, err = wasm.Rewrite(code); err != nil {
					return err
				}
			}
			m, err := wasm.Inspect(code)
			if err != nil {
				return err
			}
			printModule(cmd.OutOrStdout(), m)
			return nil
		},
	}

	command.Flags().BoolVar(&rewrite, "rewritten", false, "inspect the module after rewriting it")

	return command
}

func printModule(w io.Writer, m *wasm.Module) {
	fmt.Fprintln(w, "sections:")
	for _, s := range m.Sections {
		fmt.Fprintf(w, "  %-10s offset=%d size=%d\n", s.ID, s.HeaderStart, len(s.Bytes))
	}
	fmt.Fprintln(w, "imports:")
	for _, e := range m.Imports {
		switch e.Kind {
		case wasm.ExternalMemory, wasm.ExternalTable:
			fmt.Fprintf(w, "  %s.%s %s %s\n", e.ModuleName, e.FieldName, e.Kind, e.Limits)
		default:
			fmt.Fprintf(w, "  %s.%s %s\n", e.ModuleName, e.FieldName, e.Kind)
		}
	}
	fmt.Fprintln(w, "exports:")
	for _, e := range m.Exports {
		fmt.Fprintf(w, "  %s %s %d\n", e.FieldStr, e.Kind, e.Index)
	}
	if len(m.Memories) > 0 {
		fmt.Fprintln(w, "memories:")
		for _, l := range m.Memories {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
}
