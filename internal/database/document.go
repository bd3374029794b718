package database

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"sort"

	"github.com/ralt/qitoolchain/internal/models"
	"github.com/ralt/qitoolchain/internal/utils"
)

// document is the on-disk form of a database:
// <toolchain><package name="..." path="..."/></toolchain>
type document struct {
	XMLName  xml.Name          `xml:"toolchain"`
	Packages []packageElement `xml:"package"`
}

type packageElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// attribute order of a saved package
var attrOrder = []string{"name", "path", "version", "url", "toolchain_file", "sysroot", "cross_gdb"}

func readDocument(path string) (map[string]*models.Package, error) {
	packages := make(map[string]*models.Package)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return packages, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return packages, nil
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, el := range doc.Packages {
		pkg := fromElement(el)
		if pkg.Name == "" {
			return nil, fmt.Errorf("package without name in %s", path)
		}
		packages[pkg.Name] = pkg
	}
	return packages, nil
}

func fromElement(el packageElement) *models.Package {
	pkg := &models.Package{}
	for _, a := range el.Attrs {
		switch a.Name.Local {
		case "name":
			pkg.Name = a.Value
		case "path":
			pkg.Path = models.Some(a.Value)
		case "version":
			pkg.Version = models.Some(a.Value)
		case "url":
			pkg.Source = &models.ArchiveSource{URL: a.Value}
		case "toolchain_file":
			pkg.ToolchainFile = models.Some(a.Value)
		case "sysroot":
			pkg.Sysroot = models.Some(a.Value)
		case "cross_gdb":
			pkg.CrossGdb = models.Some(a.Value)
		}
	}
	return pkg
}

func toAttrs(pkg *models.Package) []xml.Attr {
	values := map[string]models.Attr{
		"name":           models.Some(pkg.Name),
		"path":           pkg.Path,
		"version":        pkg.Version,
		"toolchain_file": pkg.ToolchainFile,
		"sysroot":        pkg.Sysroot,
		"cross_gdb":      pkg.CrossGdb,
	}
	if u := pkg.URL(); u != "" {
		values["url"] = models.Some(u)
	}

	var attrs []xml.Attr
	for _, name := range attrOrder {
		if v := values[name]; v.NonEmpty() {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: v.Value()})
		}
	}
	return attrs
}

// encodeDocument renders packages sorted by name, so that the same
// content always produces the same bytes
func encodeDocument(packages map[string]*models.Package) ([]byte, error) {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "toolchain"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	for _, name := range names {
		start := xml.StartElement{Name: xml.Name{Local: "package"}, Attr: toAttrs(packages[name])}
		if err := enc.EncodeToken(start); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func writeDocument(path string, packages map[string]*models.Package) error {
	data, err := encodeDocument(packages)
	if err != nil {
		return err
	}
	return utils.WriteFile(path, data, 0644)
}
