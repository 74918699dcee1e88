package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/prpilot/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage prpilot configuration",
	}

	var (
		initPath string
		force    bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			path := initPath
			if path == "" {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.WriteSample(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Config file created at %s\n", path)
			return nil
		}),
	}
	initCmd.Flags().StringVar(&initPath, "path", "", "Where to write the file (default: the user config dir)")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			data, err := cfg.Effective()
			if err != nil {
				return err
			}
			if cfg.File != "" {
				fmt.Fprintf(a.stdout, "# loaded from %s\n", cfg.File)
			}
			_, err = a.stdout.Write(data)
			return err
		}),
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, p)
			return nil
		}),
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}
