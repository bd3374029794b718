package cmake

import (
	"strings"
	"testing"

	"github.com/ralt/qitoolchain/internal/models"
)

func TestGenerate(t *testing.T) {
	packages := []*models.Package{
		{Name: "a", Path: models.Some("/opt/tc/a")},
		{Name: "b", Path: models.Some(`C:\tc\b`), ToolchainFile: models.Some(`C:\tc\b\toolchain.cmake`)},
		{Name: "c", Path: models.Some("/opt/tc/c")},
	}

	out, err := NewGenerator().Generate(packages)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := `# Autogenerated file. Do not edit
# Make sure we don't keep adding elements to this list:
set(CMAKE_PREFIX_PATH "" CACHE INTERNAL "" FORCE)
set(CMAKE_FRAMEWORK_PATH "" CACHE INTERNAL "" FORCE)
include("C:/tc/b/toolchain.cmake")
list(INSERT CMAKE_PREFIX_PATH 0 "/opt/tc/a")
list(INSERT CMAKE_FRAMEWORK_PATH 0 "/opt/tc/a")
list(INSERT CMAKE_PREFIX_PATH 0 "C:/tc/b")
list(INSERT CMAKE_FRAMEWORK_PATH 0 "C:/tc/b")
list(INSERT CMAKE_PREFIX_PATH 0 "/opt/tc/c")
list(INSERT CMAKE_FRAMEWORK_PATH 0 "/opt/tc/c")
`
	if string(out) != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}
}

// Inserting at index 0 leaves the last package in front of the list
func TestSearchOrderIsInverted(t *testing.T) {
	packages := []*models.Package{
		{Name: "a", Path: models.Some("/a")},
		{Name: "b", Path: models.Some("/b")},
		{Name: "c", Path: models.Some("/c")},
	}
	out, _ := NewGenerator().Generate(packages)

	var prefix []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "list(INSERT CMAKE_PREFIX_PATH 0 ") {
			path := strings.TrimSuffix(strings.TrimPrefix(line, `list(INSERT CMAKE_PREFIX_PATH 0 "`), `")`)
			prefix = append([]string{path}, prefix...)
		}
	}
	if strings.Join(prefix, ";") != "/c;/b;/a" {
		t.Errorf("effective CMAKE_PREFIX_PATH = %v", prefix)
	}
}

func TestGenerateSkipsPackagesWithoutPath(t *testing.T) {
	out, err := NewGenerator().Generate([]*models.Package{
		{Name: "ghost"},
		{Name: "empty", Path: models.Some("")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "list(INSERT") {
		t.Errorf("no insert expected:\n%s", out)
	}
}

func TestValidatePackages(t *testing.T) {
	err := NewGenerator().ValidatePackages([]*models.Package{
		{Name: "bad", Path: models.Some(`/opt/"quoted"`)},
	})
	if err == nil {
		t.Error("a double quote in a path should be rejected")
	}
}

func TestFileName(t *testing.T) {
	if got := NewGenerator().FileName("linux64"); got != "toolchain-linux64.cmake" {
		t.Errorf("FileName = %s", got)
	}
}
