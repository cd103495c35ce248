package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newServicesCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the service catalog",
		Long: `List the services fleetplan manages, in their fixed execution order,
with the per-service traits that shape planning: sharding, the
experimental flag, and single-writer execution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(version)
			if err != nil {
				return err
			}

			defs := rt.catalog.Definitions()

			if jsonOutput {
				type serviceRow struct {
					Name         string `json:"name"`
					Sharded      bool   `json:"sharded"`
					Experimental bool   `json:"experimental"`
					SingleWriter bool   `json:"single_writer"`
				}
				rows := make([]serviceRow, 0, len(defs))
				for _, def := range defs {
					rows = append(rows, serviceRow{
						Name:         def.Name,
						Sharded:      def.Sharded,
						Experimental: def.Experimental,
						SingleWriter: def.SingleWriter,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tSHARDED\tEXPERIMENTAL\tSINGLE-WRITER")
			for _, def := range defs {
				fmt.Fprintf(w, "%s\t%v\t%v\t%v\n", def.Name, def.Sharded, def.Experimental, def.SingleWriter)
			}
			return w.Flush()
		},
	}

	return cmd
}
