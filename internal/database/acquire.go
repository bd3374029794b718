package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/remote"
	"github.com/ralt/qitoolchain/internal/utils"
)

// acquire installs pkg according to its source and resolves its
// toolchain file, sysroot and cross gdb against the installed path
func (db *Database) acquire(ctx context.Context, pkg *models.Package) error {
	switch src := pkg.Source.(type) {
	case *models.ArchiveSource:
		if err := db.acquireArchive(ctx, pkg, src); err != nil {
			return err
		}
	case *models.LocalSource:
		db.acquireLocal(pkg, src)
	case *models.VCSSource:
		if err := db.acquireVCS(ctx, pkg, src); err != nil {
			return err
		}
	case nil:
		// already installed
	default:
		return models.NewError(models.ErrAcquisition, pkg.Name, "acquire", fmt.Errorf("unsupported source %T", src))
	}

	if pkg.ToolchainFile.NonEmpty() {
		if err := db.resolveToolchainFile(ctx, pkg); err != nil {
			return err
		}
	}
	pkg.Sysroot = db.underPath(pkg, pkg.Sysroot)
	pkg.CrossGdb = db.underPath(pkg, pkg.CrossGdb)
	return nil
}

func (db *Database) acquireArchive(ctx context.Context, pkg *models.Package, src *models.ArchiveSource) error {
	log := db.log.WithField("package", pkg.Name)

	archivePath, err := db.downloader.Download(ctx, src.URL, db.cachePath, fmt.Sprintf("Downloading %s", src.URL))
	if err != nil {
		return models.NewError(models.ErrAcquisition, pkg.Name, "download", err)
	}

	// a local archive already sitting in the cache is the user's file
	owned := true
	if p, ok := remote.LocalPath(src.URL); ok && sameFile(p, archivePath) {
		owned = false
	}
	cleanup := func() {
		if !owned {
			return
		}
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			log.Warnf("Could not remove %s: %v", archivePath, err)
		}
	}

	if src.SHA256 != "" {
		if err := utils.VerifySHA256(archivePath, src.SHA256); err != nil {
			cleanup()
			return models.NewError(models.ErrAcquisition, pkg.Name, "verify", err)
		}
	}

	dest := filepath.Join(db.packagesPath, pkg.Name)
	log.Infof("Extracting %s %s", pkg.Name, pkg.Version.Value())
	_, err = db.extractor.Extract(archivePath, dest)
	cleanup()
	if err != nil {
		return models.NewError(models.ErrAcquisition, pkg.Name, "extract", err)
	}

	pkg.Path = models.Some(dest)
	return nil
}

func sameFile(a, b string) bool {
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// acquireLocal references the package in place. The directory was
// resolved against the feed when the feed was parsed.
func (db *Database) acquireLocal(pkg *models.Package, src *models.LocalSource) {
	pkg.Path = models.Some(localPath(src))
}

func localPath(src *models.LocalSource) string {
	dir := src.Directory
	if !utils.HasScheme(dir) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	return dir
}

func (db *Database) acquireVCS(ctx context.Context, pkg *models.Package, src *models.VCSSource) error {
	client, err := db.vcs(src.System)
	if err != nil {
		return models.NewError(models.ErrAcquisition, pkg.Name, "checkout", err)
	}

	dest := filepath.Join(db.packagesPath, pkg.Name)
	pkg.Path = models.Some(dest)

	if utils.Exists(dest) {
		if err := client.Update(ctx, dest, src.Revision); err != nil {
			return models.NewError(models.ErrAcquisition, pkg.Name, "update", err)
		}
		return nil
	}

	if err := utils.EnsureDir(db.packagesPath); err != nil {
		return models.NewError(models.ErrFileOp, pkg.Name, "checkout", err)
	}
	if err := client.Checkout(ctx, src.URL, src.Revision, dest); err != nil {
		return models.NewError(models.ErrAcquisition, pkg.Name, "checkout", err)
	}
	return nil
}

// resolveToolchainFile downloads a remote toolchain file into the package,
// or makes a relative one absolute
func (db *Database) resolveToolchainFile(ctx context.Context, pkg *models.Package) error {
	tcFile := pkg.ToolchainFile.Value()
	if !utils.HasScheme(tcFile) {
		pkg.ToolchainFile = db.underPath(pkg, pkg.ToolchainFile)
		return nil
	}

	path, ok := pkg.Path.Get()
	if !ok || path == "" {
		return models.NewError(models.ErrAcquisition, pkg.Name, "download toolchain file",
			fmt.Errorf("package has no path to store %s", tcFile))
	}

	local, err := db.downloader.Download(ctx, tcFile, path, fmt.Sprintf("Downloading %s", tcFile))
	if err != nil {
		return models.NewError(models.ErrAcquisition, pkg.Name, "download toolchain file", err)
	}
	pkg.ToolchainFile = models.Some(local)
	return nil
}

// underPath joins a relative attribute with the package path
func (db *Database) underPath(pkg *models.Package, attr models.Attr) models.Attr {
	value, ok := attr.Get()
	if !ok || value == "" || filepath.IsAbs(value) {
		return attr
	}
	path, ok := pkg.Path.Get()
	if !ok || path == "" {
		return attr
	}
	if utils.HasScheme(path) {
		return models.Some(path + "/" + utils.ToPosixPath(value))
	}
	return models.Some(filepath.Join(path, value))
}
