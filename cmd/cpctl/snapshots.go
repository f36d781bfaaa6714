package main

import (
	"encoding/json"
	"fmt"

	"gocp/internal/config"
	"gocp/internal/container"

	"github.com/spf13/cobra"
)

func newSnapshotsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List saved predictor snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			snaps, err := c.Snapshots.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots")
				return nil
			}
			for _, s := range snaps {
				fmt.Fprintf(out, "%s  %-24s  model %s  %s\n", s.ID, s.Kind, s.ModelID, s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
