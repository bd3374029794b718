// Package remote fetches archives, feeds and toolchain files from http(s),
// s3 or local locations.
package remote

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"lukechampine.com/blake3"

	"github.com/ralt/qitoolchain/internal/utils"
)

// Downloader fetches remote resources
type Downloader struct {
	log      logrus.FieldLogger
	client   *http.Client
	s3       ObjectGetter
	newS3    func(ctx context.Context) (ObjectGetter, error)
	progress io.Writer
}

// Option configures a Downloader
type Option func(*Downloader)

// WithHTTPClient replaces the default http client
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithProgress draws a progress bar on w for every http download
func WithProgress(w io.Writer) Option {
	return func(d *Downloader) { d.progress = w }
}

// WithS3Client sets the client used for s3:// urls
func WithS3Client(c ObjectGetter) Option {
	return func(d *Downloader) { d.s3 = c }
}

// WithS3Settings builds the s3 client lazily, on the first s3:// url
func WithS3Settings(s S3Config) Option {
	return func(d *Downloader) {
		d.newS3 = func(ctx context.Context) (ObjectGetter, error) {
			return NewS3Client(ctx, s)
		}
	}
}

// NewDownloader creates a new downloader
func NewDownloader(log logrus.FieldLogger, opts ...Option) *Downloader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Downloader{
		log: log,
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches rawURL into destDir and returns the path of the local
// copy, named after the last element of the url. message annotates the
// progress output.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir, message string) (string, error) {
	if message == "" {
		message = "Downloading " + rawURL
	}
	d.log.Info(message)

	if err := utils.EnsureDir(destDir); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, FileName(rawURL))

	if src, ok := LocalPath(rawURL); ok {
		return dest, copyLocal(src, dest)
	}

	body, size, err := d.open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	partial := filepath.Join(destDir, "."+partialName(rawURL))

	out, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", partial, err)
	}

	var w io.Writer = out
	if d.progress != nil {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionSetDescription(message),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, body); err != nil {
		out.Close()
		os.Remove(partial)
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return "", err
	}

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("failed to move download to %s: %w", dest, err)
	}

	d.log.Debugf("Downloaded %s -> %s", rawURL, dest)
	return dest, nil
}

// Fetch reads the whole resource at rawURL
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := d.open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// LocalPath returns the file path of a plain path or file:// url
func LocalPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, or a windows drive letter
		return rawURL, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}

func copyLocal(src, dest string) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if srcAbs == destAbs {
		return nil
	}
	if err := utils.CopyFile(src, dest); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// open returns a reader on the resource and its size, -1 when unknown
func (d *Downloader) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	if p, ok := LocalPath(rawURL); ok {
		return openLocal(p)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, err
	}

	switch u.Scheme {
	case "http", "https":
		return d.openHTTP(ctx, rawURL)
	case "s3":
		client, err := d.s3Client(ctx)
		if err != nil {
			return nil, 0, err
		}
		return openS3(ctx, client, u)
	default:
		return nil, 0, fmt.Errorf("unsupported url scheme %q in %s", u.Scheme, rawURL)
	}
}

func (d *Downloader) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "qitoolchain (Go)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("failed to fetch %s: %s", rawURL, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

func (d *Downloader) s3Client(ctx context.Context) (ObjectGetter, error) {
	if d.s3 != nil {
		return d.s3, nil
	}
	if d.newS3 == nil {
		d.newS3 = func(ctx context.Context) (ObjectGetter, error) {
			return NewS3Client(ctx, S3Config{})
		}
	}
	client, err := d.newS3(ctx)
	if err != nil {
		return nil, err
	}
	d.s3 = client
	return client, nil
}

func openLocal(p string) (io.ReadCloser, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// FileName returns the local file name for a url: its last path element
func FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	name := path.Base(strings.ReplaceAll(p, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}

// partialName keys in-flight downloads by url, so that two urls ending
// with the same file name never share a partial file
func partialName(rawURL string) string {
	sum := blake3.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8]) + ".part"
}

// IsRemote reports whether ref must be fetched rather than read from disk
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "s3":
		return true
	}
	return false
}
