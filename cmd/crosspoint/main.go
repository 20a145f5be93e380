// Crosspoint - switch port synchronization agent
//
// Crosspoint programs switch-ASIC ports from a declarative configuration
// and polls their counters:
//
//	crosspoint apply              # one-shot: sync hardware to the config
//	crosspoint run                # daemon: sync, then poll counters
//	crosspoint show ports         # print the configured port layout
//	crosspoint show stats         # poll once and print counters
//
// The hardware backend is selected in the configuration file: "standard"
// programs through the attribute-object database, "legacy" through the
// register-style vendor SDK (vendor builds only).
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crosspoint-network/crosspoint/pkg/config"
	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/hw/standard"
	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
	"github.com/crosspoint-network/crosspoint/pkg/version"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "crosspoint",
	Short:         "Switch port synchronization agent",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Crosspoint synchronizes switch-ASIC ports against a declarative
configuration and publishes their counters.

Hardware is only written where observed state differs from the
configuration; an unchanged port is never disturbed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isVersionOrHelp(cmd) {
			return nil
		}

		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("info")
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{showPortsCmd, showStatsCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	}

	showCmd.AddCommand(showPortsCmd, showStatsCmd)
	rootCmd.AddCommand(applyCmd, runCmd, showCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("crosspoint " + version.Info())
	},
}

func isVersionOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version":
			return true
		}
	}
	return false
}

// newBackend constructs the configured hardware backend. The returned
// closer releases the backend's connections.
func newBackend(ctx context.Context) (hw.Backend, io.Closer, error) {
	switch cfg.Backend {
	case "standard":
		store, err := standard.NewRedisStore(ctx, standard.RedisConfig{
			Addr:    cfg.ObjectDB.Addr,
			SSHHost: cfg.ObjectDB.SSHHost,
			SSHUser: cfg.ObjectDB.SSHUser,
			SSHPass: cfg.ObjectDB.SSHPass,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting object db: %w", err)
		}
		portMap := make(map[port.ID]standard.Mapping, len(cfg.Ports))
		for _, p := range cfg.Ports {
			portMap[port.ID(p.ID)] = standard.Mapping{Lanes: p.Lanes}
		}
		backend := standard.New(store, hw.NewTechResolver(nil), portMap, cfg.SampleRate)
		return backend, store, nil
	case "legacy":
		// The legacy SDK links against the vendor library and is bound in
		// platform builds via pkg/hw/legacy.New.
		return nil, nil, fmt.Errorf("legacy backend requires a vendor SDK build")
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
