package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/audit"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
	"github.com/nerrad567/gray-logic-integrations/internal/tui"
)

func newSetupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "setup <domain>",
		Short: "Set up a device interactively against the local database",
		Long: "Runs the setup flow of an integration in the terminal and stores the\n" +
			"resulting entry. A running service picks the entry up on its next start;\n" +
			"use the HTTP API to set up entries on a live service.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.readConfig()
			if err != nil {
				return err
			}
			log := logging.Discard()

			in, err := findIntegration(buildIntegrations(cfg, opts, log), args[0])
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Nothing left to flush

			flows := flow.NewManager(entry.NewSQLiteRepository(db.DB), cfg.Integrations.Flows.TTL)
			flows.SetLogger(log)
			if err := flows.Register(in.Domain(), in.NewFlow); err != nil {
				return err
			}

			m, err := tui.Run(cmd.Context(), flows, in.Domain(), in.Name(), cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			res := m.Result()
			switch {
			case res.Type == flow.ResultCreateEntry:
				return audit.NewSQLiteRepository(db.DB).Record(cmd.Context(), &audit.Record{
					Action:  audit.ActionEntryCreated,
					Domain:  res.Domain,
					EntryID: res.EntryID,
					Subject: os.Getenv("USER"),
					Source:  audit.SourceCLI,
					Details: map[string]any{"title": res.Title, "unique_id": res.UniqueID},
				})
			case res.Type == flow.ResultAbort && !m.Cancelled():
				return fmt.Errorf("setup aborted: %s", tui.Message(res.Reason))
			}
			return nil
		},
	}
}

// findIntegration returns the integration for domain.
func findIntegration(all []integrations.Integration, domain string) (integrations.Integration, error) {
	known := make([]string, 0, len(all))
	for _, in := range all {
		if in.Domain() == domain {
			return in, nil
		}
		known = append(known, in.Domain())
	}
	sort.Strings(known)
	return nil, fmt.Errorf("%w: %q (known: %s)", flow.ErrUnknownDomain, domain, strings.Join(known, ", "))
}
