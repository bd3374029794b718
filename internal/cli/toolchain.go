package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/qitoolchain/internal/database"
	"github.com/ralt/qitoolchain/internal/toolchain"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered toolchains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := toolchain.Names(a.settings.Locations)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				logrus.Info("No toolchain yet. Use `qitoolchain create` to create a new toolchain")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [name...]",
		Short: "Display the feed and packages of toolchains",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				var err error
				if names, err = toolchain.Names(a.settings.Locations); err != nil {
					return err
				}
			}
			for _, name := range names {
				tc, err := a.open(name)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), tc.String())
			}
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [feed]",
		Short: "Create a toolchain, optionally populating it from a feed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.create(args[0])
			if err != nil {
				return err
			}
			logrus.Infof("Toolchain %s created", tc.Name())
			if len(args) == 1 {
				return nil
			}
			result, err := tc.Update(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return finishUpdate(tc, result)
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <name> [feed]",
		Short: "Synchronize a toolchain with its feed",
		Long: `Synchronize a toolchain with the given feed, or with the feed it was
last updated from.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			feedURL := ""
			if len(args) == 2 {
				feedURL = args[1]
			}
			result, err := tc.Update(cmd.Context(), feedURL)
			if err != nil {
				return err
			}
			return finishUpdate(tc, result)
		},
	}
}

// finishUpdate regenerates the toolchain file and reports the changes
func finishUpdate(tc *toolchain.Toolchain, result *database.UpdateResult) error {
	path, err := tc.ToolchainFile()
	if err != nil {
		return err
	}
	if !result.Changed() {
		logrus.Infof("Toolchain %s is up to date", tc.Name())
	} else {
		logrus.Infof("Toolchain %s updated: %d added, %d removed, %d version controlled",
			tc.Name(), len(result.Added), len(result.Removed), len(result.VCS))
	}
	logrus.Infof("Toolchain file: %s", path)
	return nil
}

func newRemoveCmd(a *app) *cobra.Command {
	var cleanCache bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a toolchain and its packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if cleanCache {
				if err := tc.CleanCache(); err != nil {
					return err
				}
			}
			if err := tc.Remove(); err != nil {
				return err
			}
			logrus.Infof("Toolchain %s removed", tc.Name())
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanCache, "clean-cache", false, "Also remove downloaded archives")
	return cmd
}

func newCleanCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-cache <name>",
		Short: "Remove the downloaded archives of a toolchain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			return tc.CleanCache()
		},
	}
}
