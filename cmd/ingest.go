package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/incident-evidence/internal/ingest"
)

var (
	ingestText        string
	ingestIncidentID  string
	ingestAutoCluster bool
	ingestCallerID    string
	ingestDeviceLat   float64
	ingestDeviceLng   float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a single transcript chunk and print the resulting incident snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		chunk := ingest.Chunk{
			Text:        ingestText,
			IncidentID:  ingestIncidentID,
			AutoCluster: ingestAutoCluster,
			CallerID:    ingestCallerID,
		}
		if cmd.Flags().Changed("device-lat") && cmd.Flags().Changed("device-lng") {
			chunk.DeviceLat = &ingestDeviceLat
			chunk.DeviceLng = &ingestDeviceLng
		}

		result, err := e.coordinator.Ingest(ctx, chunk)
		if err != nil {
			return eris.Wrap(err, "ingest chunk")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "transcript chunk text (required)")
	ingestCmd.Flags().StringVar(&ingestIncidentID, "incident-id", "", "target incident id (omit with --auto-cluster to let the engine decide)")
	ingestCmd.Flags().BoolVar(&ingestAutoCluster, "auto-cluster", false, "assign to the best-matching incident, or create a new one")
	ingestCmd.Flags().StringVar(&ingestCallerID, "caller-id", "", "caller/session id for timeline grouping")
	ingestCmd.Flags().Float64Var(&ingestDeviceLat, "device-lat", 0, "device-reported latitude")
	ingestCmd.Flags().Float64Var(&ingestDeviceLng, "device-lng", 0, "device-reported longitude")
	_ = ingestCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(ingestCmd)
}
