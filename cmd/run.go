package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/pipeline"
)

var (
	runBuffer   float64
	runDebugCSV string
	runNoStops  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full fetch-resolve-associate-aggregate pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("buffer") {
			cfg.Spatial.BufferMeters = runBuffer
		}
		if runDebugCSV != "" {
			cfg.Output.DebugCSV = runDebugCSV
		}
		if runNoStops {
			cfg.Spatial.UseStopMethod = false
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := pipeline.New(cfg, st)
		run, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", run.ID),
			zap.Int("associations", run.Diagnostics.Associations),
			zap.Int("routes_with_activity", run.Diagnostics.RoutesWithActivity),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runCmd.Flags().Float64Var(&runBuffer, "buffer", 0, "route buffer distance in meters (0 = exact intersection)")
	runCmd.Flags().StringVar(&runDebugCSV, "debug-csv", "", "write resolved records and associations to this CSV path")
	runCmd.Flags().BoolVar(&runNoStops, "no-stops", false, "disable the stop-containment association method")
	rootCmd.AddCommand(runCmd)
}
