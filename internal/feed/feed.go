// Package feed parses toolchain feeds: XML documents declaring the packages
// a toolchain should contain.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/remote"
	"github.com/ralt/qitoolchain/internal/signer"
	"github.com/ralt/qitoolchain/internal/utils"
)

// Fetcher reads remote documents
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Parser reads a feed and the feeds it includes
type Parser struct {
	log      logrus.FieldLogger
	fetcher  Fetcher
	verifier signer.Verifier
}

// NewParser creates a feed parser. fetcher serves remote feeds; when
// verifier is not nil every feed must come with a valid detached signature.
func NewParser(log logrus.FieldLogger, fetcher Fetcher, verifier signer.Verifier) *Parser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Parser{log: log, fetcher: fetcher, verifier: verifier}
}

type document struct {
	XMLName xml.Name  `xml:"toolchain"`
	Entries []element `xml:",any"`
}

type element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

func (e element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e element) optional(name string) models.Attr {
	if v, ok := e.attr(name); ok {
		return models.Some(v)
	}
	return models.None()
}

// location is a feed being parsed: a local file or a remote url
type location struct {
	ref    string
	remote bool
}

// resolve returns ref relative to the directory of the feed
func (l location) resolve(ref string) string {
	if utils.HasScheme(ref) {
		return ref
	}
	if l.remote {
		base, err := url.Parse(l.ref)
		if err != nil {
			return ref
		}
		rel, err := url.Parse(utils.ToPosixPath(ref))
		if err != nil {
			return ref
		}
		return base.ResolveReference(rel).String()
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(l.ref), filepath.FromSlash(ref))
}

func newLocation(ref string) (location, error) {
	if remote.IsRemote(ref) {
		return location{ref: ref, remote: true}, nil
	}
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return location{}, err
		}
		ref = u.Path
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return location{}, err
	}
	return location{ref: abs}, nil
}

// Parse returns the packages declared by the feed at ref, a path or url,
// including those of nested feeds. A package declared twice keeps its
// first position and its last definition.
func (p *Parser) Parse(ctx context.Context, ref string) ([]*models.Package, error) {
	loc, err := newLocation(ref)
	if err != nil {
		return nil, models.NewError(models.ErrAcquisition, "", "parse feed "+ref, err)
	}

	state := &parseState{
		visited: make(map[string]bool),
		index:   make(map[string]int),
	}
	if err := p.parse(ctx, loc, state); err != nil {
		return nil, err
	}
	return state.packages, nil
}

type parseState struct {
	visited  map[string]bool
	packages []*models.Package
	index    map[string]int
}

func (s *parseState) add(log logrus.FieldLogger, pkg *models.Package) {
	if i, ok := s.index[pkg.Name]; ok {
		log.WithField("package", pkg.Name).Warn("Package declared more than once, keeping the last definition")
		s.packages[i] = pkg
		return
	}
	s.index[pkg.Name] = len(s.packages)
	s.packages = append(s.packages, pkg)
}

func (p *Parser) parse(ctx context.Context, loc location, state *parseState) error {
	if state.visited[loc.ref] {
		p.log.Debugf("Feed %s already parsed", loc.ref)
		return nil
	}
	state.visited[loc.ref] = true

	data, err := p.read(ctx, loc)
	if err != nil {
		return models.NewError(models.ErrAcquisition, "", "read feed "+loc.ref, err)
	}

	if p.verifier != nil {
		if err := p.verify(ctx, loc, data); err != nil {
			return err
		}
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return models.NewError(models.ErrInconsistentFeed, "", "parse feed "+loc.ref, err)
	}

	p.log.Debugf("Parsing feed %s", loc.ref)

	for _, el := range doc.Entries {
		switch el.XMLName.Local {
		case "package":
			pkg, err := p.archivePackage(loc, el)
			if err != nil {
				return err
			}
			state.add(p.log, pkg)
		case "svn_package", "git_package":
			pkg, err := vcsPackage(loc, el)
			if err != nil {
				return err
			}
			state.add(p.log, pkg)
		case "feed":
			nested, ok := el.attr("url")
			if !ok || nested == "" {
				return models.NewError(models.ErrInconsistentFeed, "", "parse feed "+loc.ref,
					fmt.Errorf("<feed> element without url"))
			}
			child, err := newLocation(loc.resolve(nested))
			if err != nil {
				return models.NewError(models.ErrInconsistentFeed, "", "parse feed "+loc.ref, err)
			}
			if !child.remote && !utils.Exists(child.ref) {
				return models.NewError(models.ErrInconsistentFeed, "", "parse feed "+loc.ref,
					fmt.Errorf("included feed %s does not exist", child.ref))
			}
			if err := p.parse(ctx, child, state); err != nil {
				return err
			}
		default:
			p.log.Warnf("Ignoring unknown element <%s> in feed %s", el.XMLName.Local, loc.ref)
		}
	}
	return nil
}

func (p *Parser) read(ctx context.Context, loc location) ([]byte, error) {
	if !loc.remote {
		return os.ReadFile(loc.ref)
	}
	if p.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for remote feeds")
	}
	return p.fetcher.Fetch(ctx, loc.ref)
}

func (p *Parser) verify(ctx context.Context, loc location, data []byte) error {
	sigLoc := location{ref: loc.ref + signer.SignatureExt, remote: loc.remote}
	sig, err := p.read(ctx, sigLoc)
	if err != nil {
		return models.NewError(models.ErrSignature, "", "verify feed "+loc.ref,
			fmt.Errorf("failed to read signature: %w", err))
	}
	if err := p.verifier.Verify(data, sig); err != nil {
		return models.NewError(models.ErrSignature, "", "verify feed "+loc.ref, err)
	}
	p.log.Debugf("Signature of %s verified", loc.ref)
	return nil
}

func requireName(loc location, el element) (string, error) {
	name, _ := el.attr("name")
	if name == "" {
		return "", models.NewError(models.ErrInconsistentFeed, "", "parse feed "+loc.ref,
			fmt.Errorf("<%s> element without name", el.XMLName.Local))
	}
	return name, nil
}

func (p *Parser) archivePackage(loc location, el element) (*models.Package, error) {
	name, err := requireName(loc, el)
	if err != nil {
		return nil, err
	}

	pkg := &models.Package{
		Name:          name,
		Version:       el.optional("version"),
		ToolchainFile: el.optional("toolchain_file"),
		Sysroot:       el.optional("sysroot"),
		CrossGdb:      el.optional("cross_gdb"),
	}

	pkgURL, hasURL := el.attr("url")
	directory, hasDir := el.attr("directory")
	switch {
	case hasURL && pkgURL != "":
		if hasDir {
			p.log.WithField("package", name).Warn("Both url and directory given, using url")
		}
		sha, _ := el.attr("sha256")
		pkg.Source = &models.ArchiveSource{URL: loc.resolve(pkgURL), SHA256: strings.ToLower(sha)}
	case hasDir && directory != "":
		dir := loc.resolve(directory)
		if !loc.remote && !utils.Exists(dir) {
			return nil, models.NewError(models.ErrInconsistentFeed, name, "parse feed "+loc.ref,
				fmt.Errorf("directory %s does not exist", dir))
		}
		pkg.Source = &models.LocalSource{Directory: dir}
	}

	if m, ok := el.attr("manifest"); ok && m != "" {
		manifestPath := loc.resolve(m)
		if !loc.remote && !utils.Exists(manifestPath) {
			return nil, models.NewError(models.ErrInconsistentFeed, name, "parse feed "+loc.ref,
				fmt.Errorf("manifest %s does not exist", manifestPath))
		}
		pkg.Manifest = manifestPath
	}

	return pkg, nil
}

func vcsPackage(loc location, el element) (*models.Package, error) {
	name, err := requireName(loc, el)
	if err != nil {
		return nil, err
	}
	repoURL, _ := el.attr("url")
	if repoURL == "" {
		return nil, models.NewError(models.ErrInconsistentFeed, name, "parse feed "+loc.ref,
			fmt.Errorf("<%s> element without url", el.XMLName.Local))
	}
	revision, _ := el.attr("revision")

	system := "svn"
	if el.XMLName.Local == "git_package" {
		system = "git"
	}

	return &models.Package{
		Name:          name,
		Version:       el.optional("version"),
		ToolchainFile: el.optional("toolchain_file"),
		Sysroot:       el.optional("sysroot"),
		CrossGdb:      el.optional("cross_gdb"),
		Source:        &models.VCSSource{System: system, URL: repoURL, Revision: revision},
	}, nil
}
