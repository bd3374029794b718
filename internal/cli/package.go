package cli

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/qitoolchain/internal/archive"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/scanner"
)

func newAddPackageCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add-package <toolchain> <archive>",
		Short: "Add a local package archive to a toolchain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = archive.TrimExtension(filepath.Base(args[1]))
			}
			pkg, err := tc.AddArchive(name, args[1])
			if err != nil {
				return err
			}
			logrus.Infof("Package %s added in %s", pkg.Name, pkg.Path.Value())
			_, err = tc.ToolchainFile()
			return err
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Package name (default: archive name without extension)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "import <toolchain> <directory>",
		Short: "Add every package archive found in a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			added, err := tc.Import(cmd.Context(), args[1], pattern)
			if err != nil {
				return err
			}
			logrus.Infof("%d packages imported", len(added))
			_, err = tc.ToolchainFile()
			return err
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", scanner.DefaultPattern, "Glob of the archives to import, relative to the directory")
	return cmd
}

func newRemovePackageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-package <toolchain> <package>",
		Short: "Remove a package from a toolchain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := tc.RemovePackage(args[1]); err != nil {
				return err
			}
			_, err = tc.ToolchainFile()
			return err
		},
	}
}

func newSolveDepsCmd(a *app) *cobra.Command {
	var depTypes []string

	cmd := &cobra.Command{
		Use:   "solve-deps <toolchain> <package...>",
		Short: "Print packages and their dependencies, dependencies first",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range depTypes {
				if t != models.DepBuild && t != models.DepRuntime && t != models.DepTest {
					return models.NewError(models.ErrInvalidConfig, "", "solve deps",
						fmt.Errorf("unknown dependency type %q", t))
				}
			}

			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			pkgs, err := tc.SolveDeps(args[1:], depTypes)
			if err != nil {
				return err
			}
			for _, pkg := range pkgs {
				fmt.Fprintln(cmd.OutOrStdout(), pkg.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&depTypes, "dep-types", "d", models.AllDepTypes, "Dependency types to follow (build, runtime, test)")
	return cmd
}

func newToolchainFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toolchain-file <toolchain>",
		Short: "Generate the CMake toolchain file and print its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := a.open(args[0])
			if err != nil {
				return err
			}
			path, err := tc.ToolchainFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
