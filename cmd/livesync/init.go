package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jsmonitor/livesync/internal/config"
	"github.com/jsmonitor/livesync/internal/errors"
)

func initCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default livesync.json",
		Long: `Write livesync.json with default settings into the --config
directory. An existing file is kept unless --force is given.

Examples:
  livesync init
  livesync init --config=/etc/livesync --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(flags.configDir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing livesync.json")

	return cmd
}

func runInit(dir string, force bool) error {
	path := filepath.Join(dir, config.ConfigFileName)

	if _, err := os.Stat(path); err == nil && !force {
		warn("%s already exists", path)
		info("Use --force to overwrite it")
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New("E101").WithDetailf("cannot create %s", dir).Wrap(err)
	}
	if err := config.New().SaveTo(path); err != nil {
		return err
	}

	success("Wrote %s", path)
	return nil
}
