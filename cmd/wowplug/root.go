// Package wowplug builds the command tree for the wowplug binary.
package wowplug

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wowplug/wowplug/internal/version"
	"github.com/wowplug/wowplug/pkg/config"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/paths"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity  int
		configFile string
	)

	rootCmd := &cobra.Command{
		Use:     "wowplug",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", MsgFlagConfig)

	loadSettings := func() (*config.Settings, string, error) {
		path := configFile
		if path == "" {
			path = paths.DefaultConfigFilePath()
		}
		settings, err := config.Load(path)
		return settings, path, err
	}

	rootCmd.AddCommand(newScanCmd(loadSettings))
	rootCmd.AddCommand(newSyncCmd(loadSettings))
	rootCmd.AddCommand(newCleanCmd(loadSettings))
	rootCmd.AddCommand(newConfigCmd(loadSettings))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("wowplug version %s\n", version.Version)
			cmd.Printf("  commit: %s\n", version.Commit)
			cmd.Printf("  built:  %s\n", version.Date)
		},
	}
}
