package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

// resolveOutput is the --json form of the resolve command.
type resolveOutput struct {
	Address  serveraddr.ParsedAddress  `json:"address"`
	Identity serveraddr.ServerIdentity `json:"identity"`
}

func newResolveCmd(opts *options) *cobra.Command {
	var (
		port     int
		noLookup bool
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <address>",
		Short: "Show how a server address is parsed and which identity it gets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.readConfig()
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Integrations.Minecraft.DefaultPort
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("--port must be between 1 and 65535, got %d", port)
			}

			var lookup serveraddr.ServiceLookup
			if !noLookup {
				lookup = opts.lookup
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Integrations.Minecraft.LookupTimeout)
			defer cancel()

			addr := serveraddr.Parse(args[0], port)
			id := serveraddr.ResolveIdentity(ctx, addr, lookup)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resolveOutput{Address: addr, Identity: id})
			}
			fmt.Fprintf(out, "%-12s %s\n", "HOST", addr.Host)
			fmt.Fprintf(out, "%-12s %d\n", "PORT", addr.Port)
			fmt.Fprintf(out, "%-12s %t\n", "IP LITERAL", addr.IsIPLiteral())
			fmt.Fprintf(out, "%-12s %s\n", "DIAL", addr.DialAddress())
			fmt.Fprintf(out, "%-12s %s\n", "TITLE", id.Title)
			fmt.Fprintf(out, "%-12s %s\n", "UNIQUE ID", id.StableKey)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "default port when the address has none (default from config)")
	cmd.Flags().BoolVar(&noLookup, "no-lookup", false, "skip the DNS service record lookup")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
