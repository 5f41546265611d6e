package manager

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/teamcutter/huber/internal/cache"
	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/extractor"
	"github.com/teamcutter/huber/internal/fetcher"
	"github.com/teamcutter/huber/internal/lock"
	"github.com/teamcutter/huber/internal/platform"
	"github.com/teamcutter/huber/internal/registry"
	"github.com/teamcutter/huber/internal/resolver"
	"github.com/teamcutter/huber/internal/runner"
	"github.com/teamcutter/huber/internal/state"
	"github.com/teamcutter/huber/internal/verify"
)

var linux = platform.Host{OS: "linux", Arch: "x86_64"}

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.calls[url]++
	data, ok := f.files[url]
	f.mu.Unlock()

	if !ok {
		return &fetcher.HTTPStatusError{URL: url, StatusCode: 404}
	}
	return os.WriteFile(dst, data, 0644)
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type testEnv struct {
	t           *testing.T
	fetcher     *fakeFetcher
	state       *state.JSONState
	cache       *cache.DiskCache
	lockPath    string
	packagesDir string
	binDir      string
	mgr         *Manager
}

func newEnv(t *testing.T, manifests map[string]string, files map[string][]byte) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}

	base := t.TempDir()
	repo := filepath.Join(base, "repo")
	if err := os.MkdirAll(filepath.Join(repo, registry.PackagesDir), 0755); err != nil {
		t.Fatal(err)
	}

	names := make([]string, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)

	var index strings.Builder
	for _, name := range names {
		fmt.Fprintf(&index, "- name: %s\n  owner: acme\n  source: github\n", name)
		path := filepath.Join(repo, filepath.FromSlash(registry.ManifestPath(name)))
		if err := os.WriteFile(path, []byte(manifests[name]), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(repo, registry.IndexFile), []byte(index.String()), 0644); err != nil {
		t.Fatal(err)
	}

	logger := log.New(io.Discard)
	f := &fakeFetcher{files: files, calls: make(map[string]int)}

	c, err := cache.New(filepath.Join(base, "cache"))
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		t:           t,
		fetcher:     f,
		state:       state.NewJSON(filepath.Join(base, "installed.json")),
		cache:       c,
		lockPath:    filepath.Join(base, "huber.lock"),
		packagesDir: filepath.Join(base, "packages"),
		binDir:      filepath.Join(base, "bin"),
	}

	catalog := resolver.New(registry.New(registry.NewLocalLoader(repo), logger, 2))
	env.mgr = New(
		catalog,
		lock.New(env.lockPath),
		f,
		c,
		extractor.New(),
		verify.New(f, filepath.Join(base, "keyrings")),
		runner.New(nil),
		env.state,
		env.packagesDir,
		env.binDir,
		logger,
	)
	return env
}

func (e *testEnv) installed(name string) *domain.InstalledPackage {
	e.t.Helper()
	pkg, err := e.state.Get(name)
	if err != nil {
		e.t.Fatalf("state.Get failed: %v", err)
	}
	return pkg
}

func (e *testEnv) link(name string) string {
	target, err := os.Readlink(filepath.Join(e.binDir, name))
	if err != nil {
		return ""
	}
	return target
}

func (e *testEnv) root(name, version string) string {
	return filepath.Join(e.packagesDir, name, version)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// releaseTarball builds a tar.gz holding <name>_<version>/bin/<name>.
func releaseTarball(t *testing.T, name, version string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := []struct {
		path string
		body string
		mode int64
	}{
		{fmt.Sprintf("%s_%s/bin/%s", name, version, name), fmt.Sprintf("#!/bin/sh\necho %s %s\n", name, version), 0755},
		{fmt.Sprintf("%s_%s/LICENSE", name, version), "MIT", 0644},
	}
	for _, f := range files {
		hdr := &tar.Header{Name: f.path, Mode: f.mode, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(f.body))
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func ghManifest(version, checksum string, extra string) string {
	return fmt.Sprintf(`
name: gh
version: %s
description: GitHub CLI
source:
  github: {owner: cli, repo: cli}
targets:
  - linux-amd64:
      artifact_templates: ["https://example/gh-{version}-linux-amd64.tgz"]
      checksum: "%s"
%s`, version, checksum, extra)
}

func ghURL(version string) string {
	return "https://example/gh-" + version + "-linux-amd64.tgz"
}

func TestInstallEndToEnd(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	res, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if res.Outcome != OutcomeInstalled {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if env.fetcher.total() != 1 {
		t.Errorf("expected one download, got %d", env.fetcher.total())
	}

	root := env.root("gh", "1.0.0")
	want := filepath.Join(root, "gh_1.0.0", "bin", "gh")
	if got := env.link("gh"); got != want {
		t.Errorf("gh links to %q, want %q", got, want)
	}

	rec := env.installed("gh")
	if rec == nil {
		t.Fatal("install state missing")
	}
	if rec.Version != "1.0.0" || rec.Root != root || rec.Platform != domain.PlatformLinuxAmd64 ||
		rec.Digest != "sha256:"+digest(tarball) || rec.Artifact != ghURL("1.0.0") ||
		len(rec.Executables) != 1 || rec.Executables[0] != "gh" || rec.Source != "https://github.com/cli/cli" {
		t.Errorf("unexpected state %+v", rec)
	}

	again, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux})
	if err != nil {
		t.Fatalf("second Install failed: %v", err)
	}
	if again.Outcome != OutcomeUnchanged {
		t.Errorf("second outcome = %s", again.Outcome)
	}
	if env.fetcher.total() != 1 {
		t.Errorf("second install downloaded again (%d downloads)", env.fetcher.total())
	}
	if after := env.installed("gh"); !after.InstalledAt.Equal(rec.InstalledAt) {
		t.Error("install state changed on an idempotent install")
	}
}

func TestInstallNewestWhenNoVersionGiven(t *testing.T) {
	v1 := releaseTarball(t, "gh", "1.0.0")
	v2 := releaseTarball(t, "gh", "2.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(v1), "") + "---\n" + ghManifest("2.0.0", digest(v2), "")},
		map[string][]byte{ghURL("1.0.0"): v1, ghURL("2.0.0"): v2},
	)

	res, err := env.mgr.Install(context.Background(), Request{Name: "gh", Host: linux})
	if err != nil {
		t.Fatal(err)
	}
	if res.Package.Version != "2.0.0" {
		t.Errorf("installed %s, want newest 2.0.0", res.Package.Version)
	}
}

func TestInstallChecksumMismatch(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest([]byte("something else")), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)

	_, err := env.mgr.Install(context.Background(), Request{Name: "gh", Version: "1.0.0", Host: linux})
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	var cme *domain.ChecksumMismatchError
	if !errors.As(err, &cme) || cme.Actual != "sha256:"+digest(tarball) {
		t.Errorf("error should carry both digests, got %v", err)
	}

	if env.installed("gh") != nil {
		t.Error("no install state may be written on a checksum mismatch")
	}
	if env.cache.Has("gh", "1.0.0", "gh-1.0.0-linux-amd64.tgz") {
		t.Error("mismatched artifact should be discarded")
	}
	if exists(env.root("gh", "1.0.0")) || exists(filepath.Join(env.binDir, "gh")) {
		t.Error("nothing may be applied on a checksum mismatch")
	}
}

func TestInstallChecksumMismatchKeepsPreviousInstall(t *testing.T) {
	v1 := releaseTarball(t, "gh", "1.0.0")
	v2 := releaseTarball(t, "gh", "2.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(v1), "") + "---\n" + ghManifest("2.0.0", digest(v1), "")},
		map[string][]byte{ghURL("1.0.0"): v1, ghURL("2.0.0"): v2},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux}); err != nil {
		t.Fatal(err)
	}
	before := env.installed("gh")
	beforeLink := env.link("gh")

	_, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "2.0.0", Host: linux})
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	after := env.installed("gh")
	if after == nil || after.Version != "1.0.0" || !after.InstalledAt.Equal(before.InstalledAt) {
		t.Errorf("previous install state changed: %+v", after)
	}
	if env.link("gh") != beforeLink {
		t.Error("link should still point at the previous version")
	}
}

func TestInstallArtifactFallback(t *testing.T) {
	tarball := releaseTarball(t, "tool", "0.1.0")
	manifest := fmt.Sprintf(`
name: tool
version: 0.1.0
source:
  github: {owner: acme, repo: tool}
targets:
  - linux-amd64:
      artifact_templates:
        - "https://example/tool-{version}-{os}-{arch}.tar.gz"
        - "https://mirror.example/tool_{version}_{os}_{arch}.tgz"
      checksum: "sha256:%s"
`, digest(tarball))

	env := newEnv(t,
		map[string]string{"tool": manifest},
		map[string][]byte{"https://mirror.example/tool_0.1.0_linux_amd64.tgz": tarball},
	)

	res, err := env.mgr.Install(context.Background(), Request{Name: "tool", Host: linux})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if res.Package.Artifact != "https://mirror.example/tool_0.1.0_linux_amd64.tgz" {
		t.Errorf("artifact = %s", res.Package.Artifact)
	}
	if env.fetcher.calls["https://example/tool-0.1.0-linux-amd64.tar.gz"] != 1 {
		t.Error("first template should have been tried first")
	}
}

func TestInstallArtifactUnavailable(t *testing.T) {
	manifest := `
name: tool
version: 0.1.0
source:
  github: {owner: acme, repo: tool}
targets:
  - linux-amd64:
      artifact_templates: ["https://example/a-{version}", "https://example/b-{version}"]
`
	env := newEnv(t, map[string]string{"tool": manifest}, map[string][]byte{})

	_, err := env.mgr.Install(context.Background(), Request{Name: "tool", Host: linux})
	if !errors.Is(err, domain.ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}

	var aue *domain.ArtifactUnavailableError
	if !errors.As(err, &aue) || len(aue.Attempts) != 2 {
		t.Errorf("expected both attempts recorded, got %v", err)
	}
	if env.installed("tool") != nil {
		t.Error("no state on failure")
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)

	for _, host := range []platform.Host{{OS: "windows", Arch: "x86_64"}, {OS: "freebsd", Arch: "x86_64"}} {
		_, err := env.mgr.Install(context.Background(), Request{Name: "gh", Host: host})
		if !errors.Is(err, domain.ErrUnsupportedPlatform) {
			t.Errorf("%v: expected ErrUnsupportedPlatform, got %v", host, err)
		}
	}
	if env.fetcher.total() != 0 {
		t.Error("nothing should be downloaded for an unsupported platform")
	}
}

func TestInstallNotFound(t *testing.T) {
	env := newEnv(t, map[string]string{}, nil)

	_, err := env.mgr.Install(context.Background(), Request{Name: "nope", Host: linux})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInstallRawBinary(t *testing.T) {
	binary := []byte("#!/bin/sh\necho kubectl\n")
	manifest := `
name: kubectl
source:
  github: {owner: kubernetes, repo: kubectl}
targets:
  - linux-amd64:
      artifact_templates: ["https://dl.example/release/v{version}/bin/{os}/{arch}/kubectl"]
`
	env := newEnv(t,
		map[string]string{"kubectl": manifest},
		map[string][]byte{"https://dl.example/release/v1.30.0/bin/linux/amd64/kubectl": binary},
	)

	res, err := env.mgr.Install(context.Background(), Request{Name: "kubectl", Version: "1.30.0", Host: linux})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	root := env.root("kubectl", "1.30.0")
	if got := env.link("kubectl"); got != filepath.Join(root, "kubectl") {
		t.Errorf("kubectl links to %q", got)
	}
	if res.Package.Version != "1.30.0" {
		t.Errorf("template manifest should be pinned to the requested version, got %s", res.Package.Version)
	}
}

func TestInstallCommands(t *testing.T) {
	binary := []byte("#!/bin/sh\necho fooctl\n")
	manifest := `
name: fooctl
version: 0.3.0
source:
  github: {owner: acme, repo: fooctl}
targets:
  - linux-amd64:
      artifact_templates: ["https://example/fooctl-{version}"]
      install_commands:
        - mkdir -p bin
        - cp "$HUBER_ARTIFACT" bin/fooctl && chmod +x bin/fooctl
        - echo "{version} {os} {arch} $HUBER_PACKAGE $HUBER_VERSION" > installed.txt
`
	env := newEnv(t,
		map[string]string{"fooctl": manifest},
		map[string][]byte{"https://example/fooctl-0.3.0": binary},
	)

	if _, err := env.mgr.Install(context.Background(), Request{Name: "fooctl", Host: linux}); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	root := env.root("fooctl", "0.3.0")
	data, err := os.ReadFile(filepath.Join(root, "installed.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "0.3.0 linux amd64 fooctl 0.3.0" {
		t.Errorf("command saw %q", got)
	}
	if env.link("fooctl") != filepath.Join(root, "bin", "fooctl") {
		t.Errorf("fooctl link = %q", env.link("fooctl"))
	}
}

func TestInstallCommandFailureRollsBack(t *testing.T) {
	manifest := `
name: fooctl
version: 0.3.0
source:
  github: {owner: acme, repo: fooctl}
targets:
  - linux-amd64:
      artifact_templates: ["https://example/fooctl-{version}"]
      install_commands:
        - touch half-done
        - exit 4
        - touch never
`
	env := newEnv(t,
		map[string]string{"fooctl": manifest},
		map[string][]byte{"https://example/fooctl-0.3.0": []byte("bin")},
	)

	_, err := env.mgr.Install(context.Background(), Request{Name: "fooctl", Host: linux})
	if !errors.Is(err, domain.ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}

	var ce *domain.CommandError
	if !errors.As(err, &ce) || ce.ExitCode != 4 || ce.Command != "exit 4" {
		t.Errorf("unexpected command error %v", err)
	}
	if exists(env.root("fooctl", "0.3.0")) {
		t.Error("staged root should be rolled back")
	}
	if env.installed("fooctl") != nil {
		t.Error("no state on command failure")
	}
}

func TestInstallAlreadyRunning(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)

	held, err := lock.New(env.lockPath).TryAcquire()
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.mgr.Install(context.Background(), Request{Name: "gh", Host: linux})
	if !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if env.fetcher.total() != 0 {
		t.Error("nothing should happen without the lock")
	}

	held.Release()
	if _, err := env.mgr.Install(context.Background(), Request{Name: "gh", Host: linux}); err != nil {
		t.Fatalf("Install after release failed: %v", err)
	}
}

func TestLockReleasedAfterFailure(t *testing.T) {
	env := newEnv(t, map[string]string{}, nil)

	if _, err := env.mgr.Install(context.Background(), Request{Name: "nope", Host: linux}); err == nil {
		t.Fatal("expected failure")
	}

	h, err := lock.New(env.lockPath).TryAcquire()
	if err != nil {
		t.Fatalf("lock should be free after a failed operation: %v", err)
	}
	h.Release()
}

func TestReinstallDetectsTamperedCache(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux}); err != nil {
		t.Fatal(err)
	}

	cached := env.cache.GetPath("gh", "1.0.0", "gh-1.0.0-linux-amd64.tgz")
	if err := os.WriteFile(cached, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux})
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestUninstall(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Host: linux}); err != nil {
		t.Fatal(err)
	}

	res, err := env.mgr.Uninstall(ctx, "gh", linux)
	if err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if res.Outcome != OutcomeRemoved || res.Package.Version != "1.0.0" {
		t.Errorf("unexpected result %+v", res)
	}
	if exists(filepath.Join(env.binDir, "gh")) {
		t.Error("link should be removed")
	}
	if exists(env.root("gh", "1.0.0")) {
		t.Error("package root should be removed")
	}
	if env.installed("gh") != nil {
		t.Error("state should be removed")
	}
}

// deleteFails lets the state be read but refuses to drop entries.
type deleteFails struct {
	domain.State
}

func (deleteFails) Delete(name string) error {
	return errors.New("disk full")
}

func TestUninstallStateFailureRestoresLinks(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Host: linux}); err != nil {
		t.Fatal(err)
	}
	before := env.link("gh")

	env.mgr.state = deleteFails{env.state}
	if _, err := env.mgr.Uninstall(ctx, "gh", linux); err == nil {
		t.Fatal("expected the state write to fail")
	}

	if env.link("gh") != before {
		t.Errorf("link = %q, want it restored to %q", env.link("gh"), before)
	}
	if !exists(env.root("gh", "1.0.0")) {
		t.Error("package root must survive a failed uninstall")
	}
	if env.installed("gh") == nil {
		t.Error("state should still record gh")
	}
}

func TestUninstallNotInstalled(t *testing.T) {
	env := newEnv(t, map[string]string{}, nil)

	_, err := env.mgr.Uninstall(context.Background(), "gh", linux)
	if !errors.Is(err, domain.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
	if exists(env.packagesDir) || exists(env.binDir) || exists(env.state.Path()) {
		t.Error("uninstalling an absent package must not touch the filesystem")
	}
}

func TestUninstallLeavesForeignLinks(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), "")},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Host: linux}); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(env.binDir, "gh")
	os.Remove(link)
	if err := os.Symlink("/usr/local/bin/gh", link); err != nil {
		t.Fatal(err)
	}

	if _, err := env.mgr.Uninstall(ctx, "gh", linux); err != nil {
		t.Fatal(err)
	}
	if env.link("gh") != "/usr/local/bin/gh" {
		t.Error("a link pointing outside the package root must be kept")
	}
}

func TestUninstallCommands(t *testing.T) {
	tarball := releaseTarball(t, "gh", "1.0.0")
	extra := `      uninstall_commands:
        - touch "$HUBER_BIN_DIR/uninstalled-$HUBER_PACKAGE"
`
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(tarball), extra)},
		map[string][]byte{ghURL("1.0.0"): tarball},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Host: linux}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.mgr.Uninstall(ctx, "gh", linux); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}

	if !exists(filepath.Join(env.binDir, "uninstalled-gh")) {
		t.Error("uninstall command did not run")
	}
	if env.installed("gh") != nil {
		t.Error("state should be removed")
	}
}

func TestUpgrade(t *testing.T) {
	v1 := releaseTarball(t, "gh", "1.0.0")
	v2 := releaseTarball(t, "gh", "2.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(v1), "") + "---\n" + ghManifest("2.0.0", digest(v2), "")},
		map[string][]byte{ghURL("1.0.0"): v1, ghURL("2.0.0"): v2},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux}); err != nil {
		t.Fatal(err)
	}

	res, err := env.mgr.Upgrade(ctx, "gh", linux)
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if res.Outcome != OutcomeUpgraded || res.Previous != "1.0.0" || res.Package.Version != "2.0.0" {
		t.Errorf("unexpected result %+v", res)
	}

	newRoot := env.root("gh", "2.0.0")
	if env.link("gh") != filepath.Join(newRoot, "gh_2.0.0", "bin", "gh") {
		t.Errorf("gh link = %q", env.link("gh"))
	}
	if exists(env.root("gh", "1.0.0")) {
		t.Error("old root should be removed after upgrade")
	}
	if rec := env.installed("gh"); rec.Version != "2.0.0" || rec.Root != newRoot {
		t.Errorf("state = %+v", rec)
	}

	again, err := env.mgr.Upgrade(ctx, "gh", linux)
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != OutcomeUnchanged {
		t.Errorf("second upgrade outcome = %s", again.Outcome)
	}
	if env.fetcher.total() != 2 {
		t.Errorf("expected two downloads in total, got %d", env.fetcher.total())
	}
}

func TestUpgradeNotInstalled(t *testing.T) {
	env := newEnv(t, map[string]string{}, nil)

	_, err := env.mgr.Upgrade(context.Background(), "gh", linux)
	if !errors.Is(err, domain.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestUpgradeCommandFailureKeepsPrevious(t *testing.T) {
	v1 := releaseTarball(t, "gh", "1.0.0")
	v2 := releaseTarball(t, "gh", "2.0.0")
	extra := `      upgrade_commands:
        - test "$HUBER_PREVIOUS_VERSION" = 1.0.0
        - exit 7
`
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(v1), "") + "---\n" + ghManifest("2.0.0", digest(v2), extra)},
		map[string][]byte{ghURL("1.0.0"): v1, ghURL("2.0.0"): v2},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux}); err != nil {
		t.Fatal(err)
	}
	before := env.link("gh")

	_, err := env.mgr.Upgrade(ctx, "gh", linux)

	var ce *domain.CommandError
	if !errors.As(err, &ce) || ce.ExitCode != 7 {
		t.Fatalf("expected the second command to fail with exit 7, got %v", err)
	}

	if rec := env.installed("gh"); rec == nil || rec.Version != "1.0.0" {
		t.Errorf("previous state should be untouched, got %+v", rec)
	}
	if env.link("gh") != before {
		t.Error("link should still point at the previous version")
	}
	if !exists(env.root("gh", "1.0.0")) {
		t.Error("previous root must survive a failed upgrade")
	}
	if exists(env.root("gh", "2.0.0")) {
		t.Error("staged root should be rolled back")
	}
}

func TestUpgradeRemovesStaleLinks(t *testing.T) {
	v1 := releaseTarball(t, "gh", "1.0.0")
	v2 := releaseTarball(t, "gh", "2.0.0")
	env := newEnv(t,
		map[string]string{"gh": ghManifest("1.0.0", digest(v1), "") + "---\n" + ghManifest("2.0.0", digest(v2), "")},
		map[string][]byte{ghURL("1.0.0"): v1, ghURL("2.0.0"): v2},
	)
	ctx := context.Background()

	if _, err := env.mgr.Install(ctx, Request{Name: "gh", Version: "1.0.0", Host: linux}); err != nil {
		t.Fatal(err)
	}

	// Pretend 1.0.0 also shipped a helper that 2.0.0 dropped.
	rec := env.installed("gh")
	helper := filepath.Join(rec.Root, "gh_1.0.0", "bin", "gh-helper")
	os.WriteFile(helper, []byte("#!/bin/sh\n"), 0755)
	os.Symlink(helper, filepath.Join(env.binDir, "gh-helper"))
	rec.Executables = append(rec.Executables, "gh-helper")
	if err := env.state.Put(rec); err != nil {
		t.Fatal(err)
	}

	if _, err := env.mgr.Upgrade(ctx, "gh", linux); err != nil {
		t.Fatal(err)
	}
	if exists(filepath.Join(env.binDir, "gh-helper")) {
		t.Error("link to an executable the new version dropped should be removed")
	}
}

func TestFindExecutables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit check is unix only")
	}

	root := t.TempDir()
	write := func(rel string, mode os.FileMode) {
		p := filepath.Join(root, rel)
		os.MkdirAll(filepath.Dir(p), 0755)
		os.WriteFile(p, []byte("x"), mode)
	}
	write("tool", 0755)
	write("share/completions/tool.bash", 0644)
	write("bin/tool", 0755)
	write("bin/helper", 0755)
	write("bin/README", 0644)

	got, err := findExecutables(root)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "helper,tool" {
		t.Errorf("got %v", names)
	}
	for _, p := range got {
		if filepath.Base(filepath.Dir(p)) != "bin" {
			t.Errorf("bin directory entries should win, got %s", p)
		}
	}
}
