// Package cli provides the command-line interface for graylogic-integrations.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations/heatmeter"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations/minecraft"
	"github.com/nerrad567/gray-logic-integrations/internal/serveraddr"
)

// defaultConfigPath is used when neither --config nor GRAYLOGIC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// BuildInfo is the version information set at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// options carries the flags and host services shared by the commands.
// Tests replace ports and lookup with fakes.
type options struct {
	configPath string
	build      BuildInfo
	ports      heatmeter.PortLister
	meter      heatmeter.MeterReader
	lookup     serveraddr.ServiceLookup
}

// NewRootCommand creates the root cobra command. Running it without a
// subcommand starts the service.
func NewRootCommand(build BuildInfo) *cobra.Command {
	return newRoot(&options{
		build:  build,
		ports:  heatmeter.SystemPorts{},
		lookup: serveraddr.NewNetServiceLookup(nil),
	})
}

func newRoot(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "graylogic-integrations",
		Short:         "Device integrations for Gray Logic",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", opts.build.Version, opts.build.Commit, opts.build.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newPortsCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newSetupCmd(opts))
	return root
}

// path returns the --config flag, then GRAYLOGIC_CONFIG, then the default.
func (o *options) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	if p := os.Getenv("GRAYLOGIC_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// readConfig loads the config file without validating it. A missing file
// at the default location falls back to the built-in defaults.
func (o *options) readConfig() (*config.Config, error) {
	path := o.path()
	cfg, err := config.Read(path)
	if errors.Is(err, fs.ErrNotExist) && o.configPath == "" && os.Getenv("GRAYLOGIC_CONFIG") == "" {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildIntegrations returns every integration the service knows.
func buildIntegrations(cfg *config.Config, opts *options, log *logging.Logger) []integrations.Integration {
	return []integrations.Integration{
		minecraft.New(minecraft.ConfigFrom(cfg.Integrations.Minecraft), opts.lookup, log),
		heatmeter.New(heatmeter.ConfigFrom(cfg.Integrations.HeatMeter), opts.ports, opts.meter, log),
	}
}
