package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/integrations/heatmeter"
)

// portOutput is one row of the ports command.
type portOutput struct {
	Device string `json:"device"`
	ByID   string `json:"by_id,omitempty"`
	Label  string `json:"label"`
	USB    bool   `json:"usb"`
}

func newPortsCmd(opts *options) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports a heat meter can be set up on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.readConfig()
			if err != nil {
				return err
			}
			ports, err := opts.ports.Ports()
			if err != nil {
				return fmt.Errorf("listing serial ports: %w", err)
			}

			rows := make([]portOutput, 0, len(ports))
			for _, p := range ports {
				row := portOutput{Device: p.Device, Label: p.Label(), USB: p.IsUSB}
				if byID := heatmeter.SerialByID(p.Device, cfg.Integrations.HeatMeter.SerialByIDDir); byID != p.Device {
					row.ByID = byID
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			for _, r := range rows {
				fmt.Fprintln(out, r.Label)
				if r.ByID != "" {
					fmt.Fprintf(out, "  by-id: %s\n", r.ByID)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
