package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestDownloadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packages/boost-1.77.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("boost archive"))
	}))
	defer server.Close()

	dest := t.TempDir()
	var progress bytes.Buffer
	d := NewDownloader(nil, WithProgress(&progress))

	path, err := d.Download(context.Background(), server.URL+"/packages/boost-1.77.tar.gz", dest, "Downloading boost")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if path != filepath.Join(dest, "boost-1.77.tar.gz") {
		t.Errorf("path = %s", path)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "boost archive" {
		t.Errorf("content = %q", content)
	}

	entries, _ := os.ReadDir(dest)
	if len(entries) != 1 {
		t.Errorf("expected only the downloaded file, got %d entries", len(entries))
	}
}

func TestDownloadHTTPNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := t.TempDir()
	_, err := NewDownloader(nil).Download(context.Background(), server.URL+"/missing.tar.gz", dest, "")
	if err == nil {
		t.Fatal("expected an error for a 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention the status: %v", err)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("nothing should be left behind, got %d entries", len(entries))
	}
}

func TestDownloadLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ctc.zip")
	os.WriteFile(src, []byte("zip"), 0644)

	for _, ref := range []string{src, "file://" + src} {
		dest := t.TempDir()
		path, err := NewDownloader(nil).Download(context.Background(), ref, dest, "")
		if err != nil {
			t.Fatalf("Download(%s) failed: %v", ref, err)
		}
		if filepath.Base(path) != "ctc.zip" {
			t.Errorf("Download(%s) = %s", ref, path)
		}
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(content)),
		ContentLength: aws.Int64(int64(len(content))),
	}, nil
}

func TestDownloadS3(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"toolchains/linux64/qt.tar.xz": "qt"}}
	d := NewDownloader(nil, WithS3Client(client))

	dest := t.TempDir()
	path, err := d.Download(context.Background(), "s3://toolchains/linux64/qt.tar.xz", dest, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "qt" {
		t.Errorf("content = %q", content)
	}

	if _, err := d.Download(context.Background(), "s3://toolchains/missing.tar.xz", dest, ""); err == nil {
		t.Error("expected an error for a missing object")
	}
	if _, err := d.Download(context.Background(), "s3://toolchains", dest, ""); err == nil {
		t.Error("expected an error for a url without key")
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<toolchain/>"))
	}))
	defer server.Close()

	data, err := NewDownloader(nil).Fetch(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "<toolchain/>" {
		t.Errorf("data = %q", data)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	if _, err := NewDownloader(nil).Fetch(context.Background(), "ftp://example.com/feed.xml"); err == nil {
		t.Error("ftp should not be supported")
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"http://example.com/feeds/boost-1.77.tar.gz?x=1": "boost-1.77.tar.gz",
		"s3://bucket/a/b/qt.zip":                         "qt.zip",
		"/srv/packages/ctc.zip":                          "ctc.zip",
		"http://example.com/":                            "download",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("https://example.com/feed.xml") || !IsRemote("s3://bucket/feed.xml") {
		t.Error("http and s3 urls are remote")
	}
	if IsRemote("/home/user/feed.xml") || IsRemote("file:///tmp/feed.xml") {
		t.Error("local paths are not remote")
	}
}

func TestPartialNameDiffersPerURL(t *testing.T) {
	a := partialName("http://a.example.com/boost.tar.gz")
	b := partialName("http://b.example.com/boost.tar.gz")
	if a == b {
		t.Error("partial names should differ for different urls")
	}
}
