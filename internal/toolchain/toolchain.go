// Package toolchain manages named toolchains: a package database, the feed
// it follows and the CMake toolchain file generated from its packages.
package toolchain

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ralt/qitoolchain/internal/archive"
	"github.com/ralt/qitoolchain/internal/config"
	"github.com/ralt/qitoolchain/internal/database"
	"github.com/ralt/qitoolchain/internal/generator"
	"github.com/ralt/qitoolchain/internal/generator/cmake"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/scanner"
	"github.com/ralt/qitoolchain/internal/utils"
)

// Options holds the collaborators of a Toolchain. Nil fields get the
// default implementation.
type Options struct {
	Log       logrus.FieldLogger
	Database  database.Options
	Generator generator.Generator
	Extractor database.Extractor
	Scanner   scanner.Scanner
}

// Toolchain is a named set of packages
type Toolchain struct {
	name string
	// FeedURL is the feed the toolchain was last updated from, "" if none
	FeedURL string

	paths     config.Paths
	db        *database.Database
	log       logrus.FieldLogger
	gen       generator.Generator
	extractor database.Extractor
	scanner   scanner.Scanner
}

type configDocument struct {
	XMLName xml.Name `xml:"toolchain"`
	Feed    string   `xml:"feed,attr,omitempty"`
}

// New opens the toolchain name stored under locs, registering it and
// creating an empty database if needed
func New(name string, locs config.Locations, opts Options) (*Toolchain, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	tc := &Toolchain{
		name:      name,
		paths:     locs.For(name),
		log:       log.WithField("toolchain", name),
		gen:       opts.Generator,
		extractor: opts.Extractor,
		scanner:   opts.Scanner,
	}
	if tc.gen == nil {
		tc.gen = cmake.NewGenerator()
	}
	if tc.extractor == nil {
		tc.extractor = archive.NewExtractor(tc.log)
	}
	if tc.scanner == nil {
		tc.scanner = scanner.NewFileSystemScanner(tc.log)
	}

	if err := tc.Register(); err != nil {
		return nil, err
	}
	if err := tc.Load(); err != nil {
		return nil, err
	}

	dbOpts := opts.Database
	if dbOpts.Log == nil {
		dbOpts.Log = log
	}
	if dbOpts.Extractor == nil {
		dbOpts.Extractor = tc.extractor
	}
	db, err := database.New(name, tc.paths, dbOpts)
	if err != nil {
		return nil, err
	}
	tc.db = db

	if !utils.Exists(tc.paths.DBPath) {
		if err := db.Save(); err != nil {
			return nil, err
		}
	}

	return tc, nil
}

// ValidateName rejects names that cannot be used as file names
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return models.NewError(models.ErrInvalidConfig, name, "open toolchain",
			fmt.Errorf("invalid toolchain name %q", name))
	}
	return nil
}

// Name returns the toolchain name
func (tc *Toolchain) Name() string {
	return tc.name
}

// Paths returns the files and directories used by the toolchain
func (tc *Toolchain) Paths() config.Paths {
	return tc.paths
}

// Register creates the config document if it does not exist
func (tc *Toolchain) Register() error {
	if utils.Exists(tc.paths.ConfigPath) {
		return nil
	}
	return tc.writeConfig(configDocument{})
}

// Unregister deletes the config document
func (tc *Toolchain) Unregister() error {
	if err := os.Remove(tc.paths.ConfigPath); err != nil && !os.IsNotExist(err) {
		return models.NewError(models.ErrFileOp, tc.name, "unregister", err)
	}
	return nil
}

// Load reads the feed association from the config document
func (tc *Toolchain) Load() error {
	data, err := os.ReadFile(tc.paths.ConfigPath)
	if err != nil {
		return models.NewError(models.ErrFileOp, tc.name, "load config", err)
	}
	var doc configDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return models.NewError(models.ErrFileOp, tc.name, "load config", err)
	}
	tc.FeedURL = doc.Feed
	return nil
}

// Save writes the feed association to the config document
func (tc *Toolchain) Save() error {
	return tc.writeConfig(configDocument{Feed: tc.FeedURL})
}

func (tc *Toolchain) writeConfig(doc configDocument) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return models.NewError(models.ErrFileOp, tc.name, "save config", err)
	}
	data = append([]byte(xml.Header), append(data, '\n')...)
	if _, err := utils.WriteFileIfChanged(tc.paths.ConfigPath, data, 0644); err != nil {
		return models.NewError(models.ErrFileOp, tc.name, "save config", err)
	}
	return nil
}

// Update synchronizes the packages with feedURL, or with the feed of the
// previous update when feedURL is empty, and remembers the feed
func (tc *Toolchain) Update(ctx context.Context, feedURL string) (*database.UpdateResult, error) {
	if feedURL == "" {
		feedURL = tc.FeedURL
	}
	if feedURL == "" {
		return nil, models.NewError(models.ErrInvalidConfig, tc.name, "update",
			fmt.Errorf("no feed given and none stored"))
	}

	tc.log.Infof("Updating toolchain from %s", feedURL)
	result, err := tc.db.Update(ctx, feedURL)
	if err != nil {
		return result, err
	}

	tc.FeedURL = feedURL
	if err := tc.Save(); err != nil {
		return result, err
	}
	return result, nil
}

// Packages returns the packages sorted by name
func (tc *Toolchain) Packages() []*models.Package {
	return tc.db.Packages()
}

// GetPackage returns the named package, see database.Database.GetPackage
func (tc *Toolchain) GetPackage(name string, raise bool) (*models.Package, error) {
	return tc.db.GetPackage(name, raise)
}

// AddPackage adds or replaces a package and saves the database
func (tc *Toolchain) AddPackage(pkg *models.Package) error {
	tc.db.AddPackage(pkg)
	return tc.db.Save()
}

// RemovePackage removes a package and saves the database
func (tc *Toolchain) RemovePackage(name string) error {
	if err := tc.db.RemovePackage(name); err != nil {
		return err
	}
	return tc.db.Save()
}

// SolveDeps returns the named packages and their dependencies, dependencies
// first
func (tc *Toolchain) SolveDeps(names []string, depTypes []string) ([]*models.Package, error) {
	if len(depTypes) == 0 {
		depTypes = models.AllDepTypes
	}
	return tc.db.SolveDeps(names, depTypes)
}

// ToolchainFile regenerates the toolchain file and returns its path. The
// file is left untouched when its content did not change.
func (tc *Toolchain) ToolchainFile() (string, error) {
	path := filepath.Join(filepath.Dir(tc.paths.ToolchainFilePath), tc.gen.FileName(tc.name))

	data, err := tc.gen.Generate(tc.Packages())
	if err != nil {
		return "", models.NewError(models.ErrInvalidConfig, tc.name, "generate toolchain file", err)
	}

	written, err := utils.WriteFileIfChanged(path, data, 0644)
	if err != nil {
		return "", models.NewError(models.ErrFileOp, tc.name, "write toolchain file", err)
	}
	if written {
		tc.log.Debugf("Wrote %s", path)
	}
	return path, nil
}

// Sysroot returns the sysroot of the first package declaring one, or ""
func (tc *Toolchain) Sysroot() string {
	for _, pkg := range tc.Packages() {
		if pkg.Sysroot.NonEmpty() {
			return pkg.Sysroot.Value()
		}
	}
	return ""
}

// CrossGdb returns the cross debugger of the first package declaring one,
// or ""
func (tc *Toolchain) CrossGdb() string {
	for _, pkg := range tc.Packages() {
		if pkg.CrossGdb.NonEmpty() {
			return pkg.CrossGdb.Value()
		}
	}
	return ""
}

// Remove deletes the packages, the database and the config document
func (tc *Toolchain) Remove() error {
	if err := tc.db.Remove(); err != nil {
		return err
	}
	if err := os.Remove(tc.paths.ToolchainFilePath); err != nil && !os.IsNotExist(err) {
		return models.NewError(models.ErrFileOp, tc.name, "remove", err)
	}
	return tc.Unregister()
}

// CleanCache deletes downloaded archives
func (tc *Toolchain) CleanCache() error {
	return tc.db.CleanCache()
}

// String returns a human readable summary
func (tc *Toolchain) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Toolchain %s\n", tc.name)
	if tc.FeedURL != "" {
		fmt.Fprintf(&b, "Using feed from %s\n", tc.FeedURL)
	} else {
		b.WriteString("No feed\n")
	}

	packages := tc.Packages()
	if len(packages) == 0 {
		b.WriteString("No packages\n")
		return b.String()
	}

	b.WriteString("  Packages:\n")
	for _, pkg := range packages {
		b.WriteString("    " + pkg.Name)
		if pkg.Version.NonEmpty() {
			b.WriteString(" " + pkg.Version.Value())
		}
		b.WriteString("\n")
		if pkg.Path.NonEmpty() {
			fmt.Fprintf(&b, "      in %s\n", pkg.Path.Value())
		}
	}
	return b.String()
}

// Names returns the registered toolchains, sorted
func Names(locs config.Locations) ([]string, error) {
	entries, err := os.ReadDir(locs.ToolchainsConfigDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".xml"))
	}
	sort.Strings(names)
	return names, nil
}
