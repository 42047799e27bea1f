// Package client talks to a WACCANDA server on behalf of the vibranium CLI.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAPI is the install API of a locally running server.
const DefaultAPI = "http://localhost:3000/api/"

// Sentinel errors. Use errors.Is to check for them.
var (
	// ErrPackageNotFound means no package matches the name and version.
	ErrPackageNotFound = errors.New("client: package not found")

	// ErrPackageMissing means the server knows the package but lost its file.
	ErrPackageMissing = errors.New("client: package missing on server")

	// ErrRejected means the server refused a published archive.
	ErrRejected = errors.New("client: upload rejected")

	// ErrServer means the server answered with something unusable.
	ErrServer = errors.New("client: unexpected server response")

	// ErrNetwork means the server could not be reached.
	ErrNetwork = errors.New("client: network error")
)

// Client is safe for concurrent use.
type Client struct {
	api        *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient. Publish never follows
// redirects regardless of the client's policy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for the install API rooted at api, for example
// "http://localhost:3000/api/".
func New(api string, opts ...Option) (*Client, error) {
	u, err := url.Parse(api)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", api)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{api: u, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Install downloads the archive for name at version ("latest" for the
// newest upload).
func (c *Client) Install(ctx context.Context, name, version string) ([]byte, error) {
	endpoint := c.api.JoinPath("install", name, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("installing %s==%s: %v: %w", name, version, err, ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("installing %s==%s: status %d: %w", name, version, resp.StatusCode, ErrServer)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s==%s: %v: %w", name, version, err, ErrNetwork)
	}

	attachment := strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment")
	switch {
	case attachment:
		return body, nil
	case bytes.Equal(body, []byte("missing")):
		return nil, fmt.Errorf("%s==%s: %w", name, version, ErrPackageMissing)
	case bytes.Equal(body, []byte("not found")):
		return nil, fmt.Errorf("%s==%s: %w", name, version, ErrPackageNotFound)
	case len(body) == 0:
		// The server answers a failed lookup with an empty body.
		return nil, fmt.Errorf("installing %s==%s: empty response: %w", name, version, ErrServer)
	}
	return body, nil
}

// Publish uploads the archive at path through the server's upload form.
func (c *Client) Publish(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	endpoint := c.api.ResolveReference(&url.URL{Path: "/upload"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("publishing %s: %v: %w", filepath.Base(path), err, ErrNetwork)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusFound, http.StatusSeeOther:
	case http.StatusBadRequest, http.StatusTooManyRequests:
		return fmt.Errorf("publishing %s: status %d: %w", filepath.Base(path), resp.StatusCode, ErrRejected)
	default:
		return fmt.Errorf("publishing %s: status %d: %w", filepath.Base(path), resp.StatusCode, ErrServer)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return fmt.Errorf("publishing %s: bad redirect: %w", filepath.Base(path), ErrServer)
	}
	switch {
	case loc.Path == "/":
		return nil
	case loc.Path == "/error":
		reason := loc.Query().Get("reason")
		if reason == "" {
			reason = "not a .wacc archive"
		}
		return fmt.Errorf("publishing %s: %s: %w", filepath.Base(path), reason, ErrRejected)
	}
	return fmt.Errorf("publishing %s: redirected to %s: %w", filepath.Base(path), loc, ErrServer)
}
