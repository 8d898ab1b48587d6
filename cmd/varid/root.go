package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Carmen-Shannon/oxy-varid/config"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// app carries the configuration shared by every subcommand.
type app struct {
	configPath string
	profile    string
	cfg        *config.Config
}

// newRootCommand builds the varid command tree.
func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "varid",
		Short: "VARID visual impairment simulation",
		Long: `varid simulates visual impairments described by VARID profiles.

Profiles describe blur, contrast loss, inpainting and warping for each eye
as visual field maps. The VARID extension turns the active profile into a
chain of render passes that runs after tone mapping.

Configuration is read from --config (JSON), then VARID_* environment variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("profile") {
				cfg.Profile = a.profile
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (JSON)")
	rootCmd.PersistentFlags().StringVar(&a.profile, "profile", "", "Profile file to activate (overrides the configured profile)")

	rootCmd.AddCommand(newProfilesCommand(a))
	rootCmd.AddCommand(newFXCommand(a))
	rootCmd.AddCommand(newPlanCommand(a))
	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newInspectCommand(a))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
