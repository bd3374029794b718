// Package config holds the storage locations of toolchains and the user
// settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SettingsFileName is the name of the settings file inside ConfigDir
const SettingsFileName = "qitoolchain.toml"

// Locations are the root directories every toolchain path derives from.
// They are passed explicitly so tests can redirect all storage.
type Locations struct {
	ConfigDir string `toml:"config_dir"`
	CacheDir  string `toml:"cache_dir"`
	ShareDir  string `toml:"share_dir"`
}

// Paths are the per-toolchain files and directories
type Paths struct {
	// ConfigPath is the feed association document
	ConfigPath string
	// DBPath is the package database document
	DBPath string
	// PackagesPath is where packages are extracted or checked out
	PackagesPath string
	// CachePath is where archives are downloaded before extraction
	CachePath string
	// ToolchainFilePath is the generated build-system include file
	ToolchainFilePath string
}

// DefaultLocations returns XDG style locations under the qi namespace
func DefaultLocations() Locations {
	home, _ := os.UserHomeDir()
	return Locations{
		ConfigDir: xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		CacheDir:  xdgDir("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
		ShareDir:  xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
	}
}

func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = fallback
	}
	return filepath.Join(base, "qi")
}

// InDir returns locations rooted in a single directory
func InDir(root string) Locations {
	return Locations{
		ConfigDir: filepath.Join(root, "config"),
		CacheDir:  filepath.Join(root, "cache"),
		ShareDir:  filepath.Join(root, "share"),
	}
}

// ToolchainsConfigDir is the directory holding one config document per
// registered toolchain
func (l Locations) ToolchainsConfigDir() string {
	return filepath.Join(l.ConfigDir, "toolchains")
}

// For returns the paths of the named toolchain
func (l Locations) For(name string) Paths {
	return Paths{
		ConfigPath:        filepath.Join(l.ToolchainsConfigDir(), name+".xml"),
		DBPath:            filepath.Join(l.ShareDir, "toolchains", name+".xml"),
		PackagesPath:      filepath.Join(l.ShareDir, "toolchains", name),
		CachePath:         filepath.Join(l.CacheDir, "toolchains", name),
		ToolchainFilePath: filepath.Join(l.CacheDir, "toolchains", fmt.Sprintf("toolchain-%s.cmake", name)),
	}
}

// Validate checks that every location is set
func (l Locations) Validate() error {
	if l.ConfigDir == "" || l.CacheDir == "" || l.ShareDir == "" {
		return fmt.Errorf("config, cache and share directories must all be set")
	}
	return nil
}

// FeedSettings configure feed handling
type FeedSettings struct {
	// Keyring is an armored OpenPGP public keyring. When set, feeds must
	// carry a valid detached signature.
	Keyring string `toml:"keyring"`
}

// S3Settings configure access to s3:// archive urls
type S3Settings struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Settings is the content of the settings file
type Settings struct {
	Locations Locations    `toml:"locations"`
	Feeds     FeedSettings `toml:"feeds"`
	S3        S3Settings   `toml:"s3"`
}

// Load reads the settings file at path on top of the default locations.
// A missing file is not an error. Environment variables override both.
func Load(path string) (*Settings, error) {
	settings := &Settings{Locations: DefaultLocations()}

	if path == "" {
		path = filepath.Join(settings.Locations.ConfigDir, SettingsFileName)
	}

	if _, err := toml.DecodeFile(path, settings); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	mergeEnvOverrides(settings)
	return settings, nil
}

func mergeEnvOverrides(s *Settings) {
	if v := os.Getenv("QITOOLCHAIN_CONFIG_DIR"); v != "" {
		s.Locations.ConfigDir = v
	}
	if v := os.Getenv("QITOOLCHAIN_CACHE_DIR"); v != "" {
		s.Locations.CacheDir = v
	}
	if v := os.Getenv("QITOOLCHAIN_SHARE_DIR"); v != "" {
		s.Locations.ShareDir = v
	}
}
