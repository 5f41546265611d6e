package fetcher

import (
	"context"
	"encoding/json"
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

	"github.com/teamcutter/huber/internal/version"
)

// HTTPStatusError is a download that reached the server but did not
// return 200.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status: %d", e.URL, e.StatusCode)
}

type HTTPFetcher struct {
	client   *http.Client
	token    string
	progress io.Writer
}

type Option func(*HTTPFetcher)

// WithProgress renders a byte progress bar to w for every download.
func WithProgress(w io.Writer) Option {
	return func(f *HTTPFetcher) { f.progress = w }
}

// WithGithubToken authenticates downloads from github hosts.
func WithGithubToken(token string) Option {
	return func(f *HTTPFetcher) { f.token = token }
}

func New(timeout time.Duration, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL to dst. The body is written next to dst and
// renamed into place, so dst only ever holds a complete download.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dst string) error {
	resp, err := f.get(ctx, rawURL, "")
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && strings.Contains(rawURL, "ghcr.io") {
		resp.Body.Close()
		token, err := f.getGHCRToken(ctx, resp.Header.Get("WWW-Authenticate"))
		if err != nil {
			return err
		}
		resp, err = f.get(ctx, rawURL, "Bearer "+token)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var w io.Writer = tmp
	if f.progress != nil {
		bar := newBar(f.progress, resp.ContentLength, fmt.Sprintf("Downloading %s", FileName(rawURL)))
		defer bar.Finish()
		w = io.MultiWriter(tmp, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, auth string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	switch {
	case auth != "":
		req.Header.Set("Authorization", auth)
	case f.token != "" && IsGithubHost(req.URL):
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp, nil
}

// Detailed here
// https://stackoverflow.com/questions/79168476/how-to-get-api-token-to-github-container-registry
func (f *HTTPFetcher) getGHCRToken(ctx context.Context, wwwAuth string) (string, error) {
	// Bearer realm="...",service="...",scope="..."
	params := make(map[string]string)
	for _, part := range strings.Split(wwwAuth, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "Bearer ")
		if idx := strings.Index(part, "="); idx > 0 {
			key := part[:idx]
			val := strings.Trim(part[idx+1:], `"`)
			params[key] = val
		}
	}

	tokenURL := fmt.Sprintf("%s?service=%s&scope=%s", params["realm"],
		url.QueryEscape(params["service"]), url.QueryEscape(params["scope"]))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func newBar(w io.Writer, size int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// FileName is the last path element of rawURL, without query or fragment.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// IsGithubHost reports whether u is served by GitHub, where a configured
// token may be sent.
func IsGithubHost(u *url.URL) bool {
	host := u.Hostname()
	return host == "github.com" ||
		strings.HasSuffix(host, ".github.com") ||
		strings.HasSuffix(host, ".githubusercontent.com")
}
