package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/heatx/energy-engine/methods"
)

func newMethodsCmd() *cobra.Command {
	var at float64

	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List waste-heat conversion methods, or recommend one with --at",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("at") {
				fmt.Fprint(out, methods.Summary(methods.Recommend(at), time.Now()))
				return nil
			}

			for _, m := range methods.All() {
				marker := ""
				if m.Default {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%-14s %5.1f%%  %-12s %s%s\n", m.Slug, m.Efficiency, m.TempRange, m.Name, marker)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&at, "at", 0, "exhaust temperature in C")
	return cmd
}
