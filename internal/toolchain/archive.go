package toolchain

import (
	"context"
	"path/filepath"

	"github.com/ralt/qitoolchain/internal/manifest"
	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/utils"
)

// AddArchive registers a local package archive under name and saves the
// database. The archive is extracted into the packages directory unless
// the extracted copy is already newer than the archive.
func (tc *Toolchain) AddArchive(name, archivePath string) (*models.Package, error) {
	pkg, err := tc.addArchive(name, archivePath)
	if err != nil {
		return nil, err
	}
	if err := tc.db.Save(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// Import registers every archive of dir matching pattern and saves the
// database once
func (tc *Toolchain) Import(ctx context.Context, dir, pattern string) ([]*models.Package, error) {
	archives, err := tc.scanner.Scan(ctx, dir, pattern)
	if err != nil {
		return nil, models.NewError(models.ErrFileOp, tc.name, "import", err)
	}

	var added []*models.Package
	for i, a := range archives {
		tc.log.Infof("* (%d/%d) %s", i+1, len(archives), a.Name)
		pkg, err := tc.addArchive(a.Name, a.Path)
		if err != nil {
			return added, err
		}
		added = append(added, pkg)
	}

	if err := tc.db.Save(); err != nil {
		return added, err
	}
	return added, nil
}

func (tc *Toolchain) addArchive(name, archivePath string) (*models.Package, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	log := tc.log.WithField("package", name)
	dest := filepath.Join(tc.db.PackagesPath(), name)

	stale, err := utils.IsStale(archivePath, dest)
	if err != nil {
		return nil, models.NewError(models.ErrFileOp, name, "add archive", err)
	}
	if stale {
		log.Infof("Extracting %s", filepath.Base(archivePath))
		if _, err := tc.extractor.Extract(archivePath, dest); err != nil {
			return nil, models.NewError(models.ErrAcquisition, name, "extract", err)
		}
	} else {
		log.Debugf("%s is up to date", dest)
	}

	pkg := &models.Package{Name: name, Path: models.Some(dest)}
	if m, err := manifest.Read(filepath.Join(dest, manifest.FileName)); err == nil && m.Version != "" {
		pkg.Version = models.Some(m.Version)
	}

	tc.db.AddPackage(pkg)
	return pkg, nil
}
