package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/heatx/energy-engine/allocation"
	"github.com/heatx/energy-engine/export"
)

func newAllocateCmd() *cobra.Command {
	var (
		weights allocation.Weights
		format  string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Normalize a sector split and issue the allocation bill",
		Long: `Builds an allocation from the three sector weights. When the weights sum
to exactly 100 the bill is written to stdout, or into --out as a file.
Otherwise the normalized chart shares and a balancing hint are printed and
the command fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			log := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger().Level(zerolog.WarnLevel)
			engine := allocation.NewEngineWithWeights(weights, allocation.WithLogger(log))
			state := engine.State()

			if !state.Balanced() {
				out := cmd.ErrOrStderr()
				for _, s := range state.Normalized.Shares() {
					fmt.Fprintf(out, "%-16s %4d%% (raw %d)\n", s.Label, s.Percent, state.Raw.Get(s.Sector))
				}
				fmt.Fprintln(out, state.Hint())
			}

			if outDir == "" {
				_, err = engine.Commit(export.WriterExporter{W: cmd.OutOrStdout(), Format: f, Log: log}, nil)
				return err
			}

			fe := export.NewFileExporter(outDir, f, log)
			if _, err := engine.Commit(fe, nil); err != nil {
				return err
			}
			if fe.LastPath() == "" {
				return errors.New("allocation bill was not written")
			}
			fmt.Fprintln(cmd.OutOrStdout(), fe.LastPath())
			return nil
		},
	}

	cmd.Flags().IntVar(&weights.Livelihoods, "livelihoods", allocation.DefaultWeights.Livelihoods, "livelihoods weight (0-100)")
	cmd.Flags().IntVar(&weights.Industries, "industries", allocation.DefaultWeights.Industries, "industries weight (0-100)")
	cmd.Flags().IntVar(&weights.GovtProjects, "govt", allocation.DefaultWeights.GovtProjects, "government projects weight (0-100)")
	cmd.Flags().StringVar(&format, "format", "text", "bill format: text, csv or json")
	cmd.Flags().StringVar(&outDir, "out", "", "write the bill into this directory instead of stdout")
	return cmd
}
