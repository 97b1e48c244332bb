package wowplug

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wowplug/wowplug/pkg/commands"
	"github.com/wowplug/wowplug/pkg/config"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/style"
)

type settingsLoader func() (*config.Settings, string, error)

func newScanCmd(loadSettings settingsLoader) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: MsgScanShort,
		Long:  MsgScanLong,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, configFile, err := loadSettings()
			if err != nil {
				return err
			}

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			result, err := commands.Scan(filesystem.NewOS(), settings, commands.ScanOptions{
				Dir:        dir,
				Output:     output,
				ConfigFile: configFile,
			})
			if err != nil {
				return err
			}

			cmd.Print(style.RenderScan(result.Records))
			if output != "" {
				cmd.Printf("manifest written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Dump the scan result to a manifest file usable by sync")
	return cmd
}

func newSyncCmd(loadSettings settingsLoader) *cobra.Command {
	var (
		update    bool
		remove    bool
		targetDir string
	)

	cmd := &cobra.Command{
		Use:   "sync [file]",
		Short: MsgSyncShort,
		Long:  MsgSyncLong,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, loadSettings, commands.SyncOptions{
				File:      fileArg(args),
				Update:    update,
				Delete:    remove,
				TargetDir: targetDir,
			})
		},
	}

	cmd.Flags().BoolVarP(&update, "update", "u", false, "Update outdated addons if possible")
	cmd.Flags().BoolVarP(&remove, "delete", "d", false, "Delete unused addons instead of placing them in the cache")
	cmd.Flags().StringVarP(&targetDir, "output", "o", "", "Sync to this directory instead of the manifest's scan dir")
	return cmd
}

func newCleanCmd(loadSettings settingsLoader) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "clean [file]",
		Short: MsgCleanShort,
		Long:  MsgCleanLong,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, loadSettings, commands.SyncOptions{
				File:   fileArg(args),
				Delete: remove,
				Clean:  true,
			})
		},
	}

	cmd.Flags().BoolVarP(&remove, "delete", "d", false, "Delete the addons instead of placing them in the cache")
	return cmd
}

func newConfigCmd(loadSettings settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: MsgConfigShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings()
			if err != nil {
				return err
			}
			out, err := config.Render(settings)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		},
	}
}

func runSync(cmd *cobra.Command, loadSettings settingsLoader, opts commands.SyncOptions) error {
	settings, configFile, err := loadSettings()
	if err != nil {
		return err
	}
	opts.ConfigFile = configFile

	report, err := commands.Sync(cmd.Context(), filesystem.NewOS(), settings, opts)
	if err != nil {
		return err
	}

	cmd.Print(style.RenderReport(report))
	if report.Failed() {
		return fmt.Errorf("sync finished with failures")
	}
	return nil
}

func fileArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}
