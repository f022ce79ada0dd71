package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treasurydao/storagecost"
	"github.com/treasurydao/storagecost/internal/load"
	"github.com/treasurydao/storagecost/types"
)

// operationKeys maps the short names accepted on the command line to the
// labels of the default menu.
var operationKeys = map[string]string{
	"transfer":      storagecost.LabelTransferNative,
	"transfer-ft":   storagecost.LabelTransferToken,
	"function-call": storagecost.LabelFunctionCall,
	"add-member":    storagecost.LabelAddMember,
	"remove-member": storagecost.LabelRemoveMember,
	"change-config": storagecost.LabelChangeConfig,
	"poll":          storagecost.LabelPoll,
	"approve":       storagecost.LabelVoteApprove,
	"reject":        storagecost.LabelVoteReject,
	"remove":        storagecost.LabelVoteRemove,
}

func operationNames() []string {
	names := make([]string, 0, len(operationKeys))
	for k := range operationKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// lookupOperation finds the menu descriptor for a short operation name.
func lookupOperation(cfg types.EstimatorConfig, name string) (types.Descriptor, error) {
	label, ok := operationKeys[name]
	if !ok {
		return types.Descriptor{}, fmt.Errorf("unknown operation %q (known: %s)", name, strings.Join(operationNames(), ", "))
	}
	for _, d := range storagecost.DefaultMenu(cfg) {
		if d.Description == label {
			return d, nil
		}
	}
	return types.Descriptor{}, fmt.Errorf("operation %q is not on the menu", name)
}

func estimateCommand(opts *rootOptions) *cobra.Command {
	var dumpStorage bool

	command := &cobra.Command{
		Use:   "estimate [path to module] [operation]...",
		Short: "Measure the storage bytes of individual operations",
		Long: "Measure the storage bytes of individual operations. Known operations: " +
			strings.Join(operationNames(), ", "),
		Args: cobra.MinimumNArgs(1),
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

			names := args[1:]
			if len(names) == 0 {
				names = operationNames()
			}
			descriptors := make([]types.Descriptor, len(names))
			for i, name := range names {
				if descriptors[i], err = lookupOperation(cfg, name); err != nil {
					return err
				}
			}

			estimator, err := storagecost.New(cfg, storagecost.WithLogger(logger))
			if err != nil {
				return err
			}
			defer estimator.Close(cmd.Context())

			w := cmd.OutOrStdout()
			if dumpStorage {
				baseline, err := estimator.Baseline(cmd.Context(), code)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "baseline: %d entries, %d bytes\n", baseline.Len(), baseline.Usage())
				baseline.Ascend(func(key, value []byte) bool {
					fmt.Fprintf(w, "  %q = %q\n", key, value)
					return true
				})
			}

			for i, d := range descriptors {
				m, err := estimator.Measure(cmd.Context(), code, d)
				if err != nil {
					return err
				}
				if m.After < m.Before {
					fmt.Fprintf(w, "%s\t%d\t(freed %d)\n", names[i], m.Delta(), m.Freed())
					continue
				}
				fmt.Fprintf(w, "%s\t%d\n", names[i], m.Delta())
			}
			return nil
		},
	}

	command.Flags().BoolVar(&dumpStorage, "dump-storage", false, "print the storage entries of the initialized contract")

	return command
}
