// Package database stores the packages of a toolchain and keeps them in
// sync with a feed.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ralt/qitoolchain/internal/archive"
	"github.com/ralt/qitoolchain/internal/config"
	"github.com/ralt/qitoolchain/internal/depsolve"
	"github.com/ralt/qitoolchain/internal/feed"
	"github.com/ralt/qitoolchain/internal/manifest"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/remote"
	"github.com/ralt/qitoolchain/internal/vcs"
)

// FeedParser turns a feed location into candidate packages
type FeedParser interface {
	Parse(ctx context.Context, ref string) ([]*models.Package, error)
}

// Downloader fetches url into destDir and returns the local path
type Downloader interface {
	Download(ctx context.Context, url, destDir, message string) (string, error)
}

// Extractor unpacks an archive into destDir
type Extractor interface {
	Extract(archivePath, destDir string) (string, error)
}

// ManifestLoader fills the dependency lists of a package
type ManifestLoader interface {
	LoadDeps(pkg *models.Package) error
}

// VCSFactory returns the client of a version control system
type VCSFactory func(system string) (vcs.Client, error)

// Options holds the collaborators of a Database. Nil fields get the
// default implementation.
type Options struct {
	Log        logrus.FieldLogger
	Feeds      FeedParser
	Downloader Downloader
	Extractor  Extractor
	Manifests  ManifestLoader
	VCS        VCSFactory
}

// Database is the set of packages of one toolchain
type Database struct {
	name         string
	dbPath       string
	cachePath    string
	packagesPath string
	packages     map[string]*models.Package

	log        logrus.FieldLogger
	feeds      FeedParser
	downloader Downloader
	extractor  Extractor
	manifests  ManifestLoader
	vcs        VCSFactory
}

// UpdateResult lists the package names touched by Update
type UpdateResult struct {
	Added   []string
	Removed []string
	VCS     []string
}

// Changed reports whether the update modified the package set
func (r *UpdateResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.VCS) > 0
}

// New creates the database of toolchain name and loads its document
func New(name string, paths config.Paths, opts Options) (*Database, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("toolchain", name)

	db := &Database{
		name:         name,
		dbPath:       paths.DBPath,
		cachePath:    paths.CachePath,
		packagesPath: paths.PackagesPath,
		log:          log,
		feeds:        opts.Feeds,
		downloader:   opts.Downloader,
		extractor:    opts.Extractor,
		manifests:    opts.Manifests,
		vcs:          opts.VCS,
	}

	if db.downloader == nil || db.feeds == nil {
		d := remote.NewDownloader(log)
		if db.downloader == nil {
			db.downloader = d
		}
		if db.feeds == nil {
			db.feeds = feed.NewParser(log, d, nil)
		}
	}
	if db.extractor == nil {
		db.extractor = archive.NewExtractor(log)
	}
	if db.manifests == nil {
		db.manifests = manifest.NewLoader()
	}
	if db.vcs == nil {
		runner := vcs.NewExecRunner(log)
		db.vcs = func(system string) (vcs.Client, error) {
			return vcs.New(system, runner)
		}
	}

	if err := db.Load(); err != nil {
		return nil, err
	}
	return db, nil
}

// Name returns the toolchain name
func (db *Database) Name() string {
	return db.name
}

// PackagesPath is the directory packages are installed in
func (db *Database) PackagesPath() string {
	return db.packagesPath
}

// Load reads the database document. A missing document is an empty
// database.
func (db *Database) Load() error {
	packages, err := readDocument(db.dbPath)
	if err != nil {
		return models.NewError(models.ErrFileOp, db.name, "load database", err)
	}
	db.packages = packages
	return nil
}

// Save writes the database document
func (db *Database) Save() error {
	if err := writeDocument(db.dbPath, db.packages); err != nil {
		return models.NewError(models.ErrFileOp, db.name, "save database", err)
	}
	return nil
}

// Packages returns the packages sorted by name
func (db *Database) Packages() []*models.Package {
	res := make([]*models.Package, 0, len(db.packages))
	for _, pkg := range db.packages {
		res = append(res, pkg)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// GetPackage returns the named package. When it is missing, GetPackage
// returns a NotFound error if raise is set, nil otherwise.
func (db *Database) GetPackage(name string, raise bool) (*models.Package, error) {
	pkg, ok := db.packages[name]
	if !ok {
		if raise {
			return nil, models.NotFound(name, "get package")
		}
		return nil, nil
	}
	return pkg, nil
}

// AddPackage adds or replaces a package. The document is not saved.
func (db *Database) AddPackage(pkg *models.Package) {
	db.packages[pkg.Name] = pkg
}

// RemovePackage removes a package. The document is not saved.
func (db *Database) RemovePackage(name string) error {
	if _, ok := db.packages[name]; !ok {
		return models.NotFound(name, "remove package")
	}
	delete(db.packages, name)
	return nil
}

// SolveDeps returns the requested packages and everything they depend on,
// dependencies first. depTypes selects "build", "runtime" and "test"
// dependencies.
func (db *Database) SolveDeps(requested []string, depTypes []string) ([]*models.Package, error) {
	graph := make(depsolve.Graph, len(db.packages))
	for _, pkg := range db.Packages() {
		if err := db.manifests.LoadDeps(pkg); err != nil {
			return nil, err
		}
		graph[pkg.Name] = pkg.Depends(depTypes)
	}

	names, err := depsolve.Resolve(graph, requested, depsolve.Options{})
	if err != nil {
		var cycle *depsolve.CycleError
		var missing *depsolve.MissingDependencyError
		switch {
		case errors.As(err, &cycle):
			return nil, models.NewError(models.ErrCycle, db.name, "solve deps", err)
		case errors.As(err, &missing):
			return nil, models.NewError(models.ErrMissingDependency, missing.Package, "solve deps", err)
		default:
			return nil, err
		}
	}

	res := make([]*models.Package, 0, len(names))
	for _, name := range names {
		if pkg, ok := db.packages[name]; ok {
			res = append(res, pkg)
		}
	}
	return res, nil
}

// Update synchronizes the database with the feed at feedURL and saves it.
//
// Version controlled packages are checked out or updated on every call.
// Other packages are compared by name, version and url, and local packages
// also by directory: the ones the feed no longer declares are removed first,
// then new ones are acquired. A
// failure leaves the document untouched, but the in-memory set keeps the
// changes made before the failure.
func (db *Database) Update(ctx context.Context, feedURL string) (*UpdateResult, error) {
	remotePackages, err := db.feeds.Parse(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	snapshot := db.Packages()
	local := make(map[string]bool, len(snapshot))
	byName := make(map[string]*models.Package, len(snapshot))
	for _, pkg := range snapshot {
		local[pkg.Identity()] = true
		byName[pkg.Name] = pkg
	}

	result := &UpdateResult{}
	declared := make(map[string]bool, len(remotePackages))
	vcsNames := make(map[string]bool)
	var vcsPackages, others []*models.Package

	for _, pkg := range remotePackages {
		declared[pkg.Identity()] = true
		if pkg.Kind() == models.SourceVCS {
			vcsNames[pkg.Name] = true
			vcsPackages = append(vcsPackages, pkg)
			continue
		}
		others = append(others, pkg)
	}

	if len(vcsPackages) > 0 {
		db.log.Info("Updating version controlled packages")
	}
	for i, pkg := range vcsPackages {
		db.log.Infof("* (%d/%d) %s", i+1, len(vcsPackages), pkg.Name)
		if err := db.acquire(ctx, pkg); err != nil {
			return result, err
		}
		db.packages[pkg.Name] = pkg
		result.VCS = append(result.VCS, pkg.Name)
	}

	var toAdd, toRemove []*models.Package
	moved := make(map[string]bool)
	for _, pkg := range others {
		if movedLocal(pkg, byName[pkg.Name]) {
			moved[pkg.Name] = true
			toAdd = append(toAdd, pkg)
			continue
		}
		if !local[pkg.Identity()] {
			toAdd = append(toAdd, pkg)
		}
	}
	for _, pkg := range snapshot {
		if vcsNames[pkg.Name] {
			continue
		}
		if moved[pkg.Name] || !declared[pkg.Identity()] {
			toRemove = append(toRemove, pkg)
		}
	}

	if len(toRemove) > 0 {
		db.log.Info("Removing packages")
	}
	for i, pkg := range toRemove {
		db.log.Infof("* (%d/%d) %s", i+1, len(toRemove), pkg.Name)
		delete(db.packages, pkg.Name)
		result.Removed = append(result.Removed, pkg.Name)
	}

	if len(toAdd) > 0 {
		db.log.Info("Adding packages")
	}
	for i, pkg := range toAdd {
		db.log.Infof("* (%d/%d) %s", i+1, len(toAdd), pkg.Name)
		if err := db.acquire(ctx, pkg); err != nil {
			return result, err
		}
		db.packages[pkg.Name] = pkg
		result.Added = append(result.Added, pkg.Name)
	}

	if err := db.Save(); err != nil {
		return result, err
	}
	return result, nil
}

// movedLocal reports whether pkg is a local package whose directory is no
// longer the path recorded for the installed package of the same name
func movedLocal(pkg, installed *models.Package) bool {
	src, ok := pkg.Source.(*models.LocalSource)
	if !ok || installed == nil {
		return false
	}
	return installed.Path.Value() != localPath(src)
}

// Remove deletes the installed packages and the database document
func (db *Database) Remove() error {
	if err := os.RemoveAll(db.packagesPath); err != nil {
		return models.NewError(models.ErrFileOp, db.name, "remove packages", err)
	}
	if err := os.Remove(db.dbPath); err != nil && !os.IsNotExist(err) {
		return models.NewError(models.ErrFileOp, db.name, "remove database", err)
	}
	db.packages = make(map[string]*models.Package)
	return nil
}

// CleanCache deletes downloaded archives
func (db *Database) CleanCache() error {
	if err := os.RemoveAll(db.cachePath); err != nil {
		return models.NewError(models.ErrFileOp, db.name, "clean cache", fmt.Errorf("failed to remove %s: %w", db.cachePath, err))
	}
	return nil
}
