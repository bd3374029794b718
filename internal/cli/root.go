package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/qitoolchain/internal/config"
	"github.com/ralt/qitoolchain/internal/database"
	"github.com/ralt/qitoolchain/internal/feed"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/remote"
	"github.com/ralt/qitoolchain/internal/signer"
	"github.com/ralt/qitoolchain/internal/toolchain"
)

// app holds what every subcommand needs once the flags are parsed
type app struct {
	settings *config.Settings
	log      logrus.FieldLogger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "qitoolchain",
		Short: "Manage toolchains of prebuilt packages",
		Long: `qitoolchain maintains named toolchains: sets of prebuilt packages
(headers, libraries, CMake config files) kept in sync with a feed, and
generates a CMake toolchain file pointing at them.

Packages can come from:
  - archives (.tar.gz, .tar.xz, .tar.zst, .tar.bz2, .zip, .rpm) over
    http(s), s3 or the local filesystem
  - directories next to the feed
  - svn or git repositories`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			configPath, _ := cmd.Flags().GetString("config")
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := settings.Locations.Validate(); err != nil {
				return err
			}
			a.settings = settings
			a.log = logrus.StandardLogger()
			logrus.Debugf("Settings: %+v", settings.Locations)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the settings file (default <config dir>/qitoolchain.toml)")

	// Add subcommands
	rootCmd.AddCommand(
		newListCmd(a),
		newInfoCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newCleanCacheCmd(a),
		newAddPackageCmd(a),
		newImportCmd(a),
		newRemovePackageCmd(a),
		newSolveDepsCmd(a),
		newToolchainFileCmd(a),
		newSignFeedCmd(a),
	)

	return rootCmd
}

// options builds the collaborators from the settings
func (a *app) options() (toolchain.Options, error) {
	s3 := a.settings.S3
	downloader := remote.NewDownloader(a.log,
		remote.WithProgress(os.Stderr),
		remote.WithS3Settings(remote.S3Config{
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
		}),
	)

	var verifier signer.Verifier
	if keyring := a.settings.Feeds.Keyring; keyring != "" {
		v, err := signer.NewGPGVerifier(keyring)
		if err != nil {
			return toolchain.Options{}, fmt.Errorf("failed to load keyring %s: %w", keyring, err)
		}
		verifier = v
	}

	return toolchain.Options{
		Log: a.log,
		Database: database.Options{
			Log:        a.log,
			Feeds:      feed.NewParser(a.log, downloader, verifier),
			Downloader: downloader,
		},
	}, nil
}

// open opens an existing toolchain
func (a *app) open(name string) (*toolchain.Toolchain, error) {
	names, err := toolchain.Names(a.settings.Locations)
	if err != nil {
		return nil, err
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return nil, models.NewError(models.ErrNotFound, name, "open toolchain", fmt.Errorf("no such toolchain: %s", name))
	}
	return a.create(name)
}

// create opens a toolchain, registering it if needed
func (a *app) create(name string) (*toolchain.Toolchain, error) {
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	return toolchain.New(name, a.settings.Locations, opts)
}
