package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clean-dependency-project/modelreg/internal/config"
	"github.com/clean-dependency-project/modelreg/internal/mockregistry"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

const (
	baseModelURL  = "https://huggingface.co/google-bert/bert-base-uncased"
	tunedModelURL = "https://huggingface.co/acme/bert-squad"
	squadURL      = "https://huggingface.co/datasets/rajpurkar/squad"
)

// harness runs the modelreg app against an in-process registry and a fake GitHub API,
// with all local state under a temporary directory.
type harness struct {
	t          *testing.T
	dir        string
	configPath string
	stderr     bytes.Buffer
}

func testSeed() mockregistry.Seed {
	seed := mockregistry.DefaultSeed()
	seed.Packages = []mockregistry.SeedPackage{
		{ID: "bert-10", Name: "bert", Version: "1.0.0", SizeBytes: 2048, Meta: map[string]string{"author": "google"}},
		{ID: "bert-12", Name: "bert", Version: "1.2.0"},
		{ID: "gpt-2", Name: "gpt", Version: "2.0.0"},
	}
	seed.Artifacts = []mockregistry.SeedArtifact{
		{Type: registry.TypeDataset, URL: squadURL},
		{Type: registry.TypeModel, URL: baseModelURL, License: "apache-2.0"},
		{Type: registry.TypeModel, URL: tunedModelURL, Parents: []string{"bert-base-uncased", "squad", "ghost"}},
	}
	return seed
}

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/trainer/license", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"html_url":"https://github.com/acme/trainer/blob/main/LICENSE","license":{"key":"mit","spdx_id":"MIT","name":"MIT License"}}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := mockregistry.New(mockregistry.Options{
		Server: config.ServerConfig{JWTSecret: "cli-test-secret", TokenTTL: "1h"},
		Seed:   testSeed(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("mockregistry.New() error = %v", err)
	}
	registryServer := httptest.NewServer(srv.Handler())
	t.Cleanup(registryServer.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Registry.URL = registryServer.URL
	cfg.State.DatabasePath = filepath.Join(dir, "state.db")
	cfg.UI.PageSize = 2
	cfg.UI.RedirectDelay = "0s"
	cfg.UI.DownloadDir = filepath.Join(dir, "downloads")
	cfg.UI.ReportDir = filepath.Join(dir, "reports")
	cfg.GitHub.APIURL = fakeGitHub(t).URL

	path := filepath.Join(dir, "config.yaml")
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	return &harness{t: t, dir: dir, configPath: path}
}

// run executes one modelreg invocation and returns what it wrote to stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &h.stderr
	err := app.Run(append([]string{"modelreg", "--config", h.configPath}, args...))
	return out.String(), err
}

// mustRun is run that fails the test on error.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("modelreg %s: %v\nstderr:\n%s", strings.Join(args, " "), err, h.stderr.String())
	}
	return out
}

func (h *harness) login(user string) {
	h.t.Helper()
	h.mustRun("login", "-u", user, "-p", user)
}

func artifactIDFor(t *testing.T, h *harness, name string) string {
	t.Helper()
	out := h.mustRun("-o", "json", "query", "--mode", "name", "--name", name)
	var results []registry.ArtifactMetadata
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode query output: %v\n%s", err, out)
	}
	if len(results) != 1 {
		t.Fatalf("query %s returned %d results", name, len(results))
	}
	return results[0].ID
}

func TestCLI_ProtectedCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"list"}, {"whoami"}, {"show", "bert-10"}, {"query", "--name", "squad"}} {
		_, err := h.run(args...)
		if !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("modelreg %v error = %v, want ErrNotLoggedIn", args, err)
		}
	}
	if !strings.Contains(h.stderr.String(), "blocked by route guard") {
		t.Errorf("expected guard log on stderr, got:\n%s", h.stderr.String())
	}
}

func TestCLI_LoginSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("login", "-u", "viewer", "-p", "viewer")
	if want := "Logged in as viewer (viewer)"; !strings.Contains(out, want) {
		t.Errorf("login output = %q, want %q", out, want)
	}

	out = h.mustRun("whoami")
	if strings.TrimSpace(out) != "viewer (viewer)" {
		t.Errorf("whoami output = %q", out)
	}

	h.mustRun("logout")
	if _, err := h.run("whoami"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("whoami after logout error = %v, want ErrNotLoggedIn", err)
	}
}

func TestCLI_LoginFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("login", "-u", "viewer", "-p", "wrong")
	if err == nil {
		t.Fatal("expected login to fail")
	}
	if err.Error() != "Invalid credentials" {
		t.Errorf("error = %q, want the registry's detail", err.Error())
	}
	if !errors.Is(err, registry.ErrUnauthorized) {
		t.Errorf("error %v should match registry.ErrUnauthorized", err)
	}
}

func TestCLI_ListPackages(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")

	out := h.mustRun("list")
	for _, want := range []string{"bert-10", "bert-12", "Page 1 of 2 (3 packages)"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gpt-2") {
		t.Errorf("first page should hold two packages:\n%s", out)
	}

	out = h.mustRun("list", "--page", "2")
	if !strings.Contains(out, "gpt-2") || !strings.Contains(out, "Page 2 of 2") {
		t.Errorf("second page output:\n%s", out)
	}

	out = h.mustRun("-o", "json", "list", "--version", "~1.2.0")
	var page listOutput
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "bert-12" {
		t.Errorf("filtered page = %+v", page)
	}

	out = h.mustRun("list", "--q", "^llama")
	if strings.TrimSpace(out) != "No packages match." {
		t.Errorf("empty search output = %q", out)
	}

	if _, err := h.run("list", "--version", "1.x.y-"); err == nil {
		t.Error("expected an invalid version filter to fail")
	}
}

func TestCLI_ShowPackage(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")

	out := h.mustRun("show", "--html", "bert.html", "bert-10")
	for _, want := range []string{"bert-10", "2.0 KiB", "METRIC"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	html, err := os.ReadFile(filepath.Join(h.dir, "reports", "bert.html"))
	if err != nil {
		t.Fatalf("report not written to the report directory: %v", err)
	}
	if !bytes.Contains(html, []byte("<title>bert 1.0.0</title>")) {
		t.Errorf("report has unexpected title")
	}

	if _, err := h.run("show"); !errors.Is(err, ErrUsage) {
		t.Errorf("show without id error = %v, want ErrUsage", err)
	}
	if _, err := h.run("show", "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("show missing error = %v, want ErrNotFound", err)
	}
}

func TestCLI_RoleRequirements(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")

	if _, err := h.run("create", "--name", "x", "--version", "1.0.0"); !errors.Is(err, ErrForbidden) {
		t.Errorf("viewer create error = %v, want ErrForbidden", err)
	}
	if _, err := h.run("rate", "bert-10"); !errors.Is(err, ErrForbidden) {
		t.Errorf("viewer rate error = %v, want ErrForbidden", err)
	}
	if _, err := h.run("submit", "--model-url", baseModelURL); !errors.Is(err, ErrForbidden) {
		t.Errorf("viewer submit error = %v, want ErrForbidden", err)
	}

	h.login("contributor")
	if _, err := h.run("delete", "model", "0123456789"); !errors.Is(err, ErrForbidden) {
		t.Errorf("contributor delete error = %v, want ErrForbidden", err)
	}
}

func TestCLI_CreateAndRate(t *testing.T) {
	h := newHarness(t)
	h.login("contributor")

	out := h.mustRun("-o", "json", "create", "--name", "t5", "--version", "0.1.0", "--meta", "author=google", "--card", "text-to-text")
	var created registry.PackageDetail
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode create output: %v\n%s", err, out)
	}
	if created.Name != "t5" || created.Meta["author"] != "google" {
		t.Errorf("created = %+v", created)
	}

	out = h.mustRun("rate", created.ID)
	if !strings.Contains(out, "Bus Factor") {
		t.Errorf("rate output should list refreshed scores:\n%s", out)
	}

	if _, err := h.run("create", "--name", "t5", "--version", "one"); err == nil {
		t.Error("expected a non-semver version to be rejected")
	}
	if _, err := h.run("create", "--name", "t5", "--version", "1.0.0", "--meta", "novalue"); !errors.Is(err, ErrUsage) {
		t.Errorf("bad meta error = %v, want ErrUsage", err)
	}
}

func TestCLI_Submit(t *testing.T) {
	h := newHarness(t)
	h.login("contributor")

	out := h.mustRun("submit", "--model-url", baseModelURL)
	if !strings.Contains(out, "Submitted bert-base-uncased 1.0.0 as") {
		t.Errorf("submit output:\n%s", out)
	}

	out = h.mustRun("-o", "json", "submit", "--model-url", tunedModelURL, "--name", "squad-bert", "--version", "2.0.0")
	var result submitOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode submit output: %v\n%s", err, out)
	}
	if result.Result.Name != "squad-bert" || result.Target == "" {
		t.Errorf("submit result = %+v", result)
	}

	out = h.mustRun("show", result.Result.ID)
	if !strings.Contains(out, "squad-bert") {
		t.Errorf("submitted package not visible:\n%s", out)
	}

	if _, err := h.run("submit"); err == nil {
		t.Error("expected submit without model url to fail")
	}
}

func TestCLI_DownloadRecordAndExports(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")

	if out := h.mustRun("exports"); strings.TrimSpace(out) != "No records downloaded." {
		t.Errorf("exports before download = %q", out)
	}

	out := h.mustRun("download-record", "bert-10")
	path := filepath.Join(h.dir, "downloads", "bert-10-rating.ndjson")
	if !strings.Contains(out, path) {
		t.Errorf("download output should name %s:\n%s", path, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if !bytes.Contains(data, []byte(`"name":"bert"`)) {
		t.Errorf("record content = %s", data)
	}

	out = h.mustRun("-o", "json", "exports", "bert-10")
	var exports []struct {
		ArtifactID string `json:"artifact_id"`
		Path       string `json:"path"`
	}
	if err := json.Unmarshal([]byte(out), &exports); err != nil {
		t.Fatalf("decode exports: %v\n%s", err, out)
	}
	if len(exports) != 1 || exports[0].Path != path {
		t.Errorf("exports = %+v", exports)
	}
}

func TestCLI_Artifacts(t *testing.T) {
	h := newHarness(t)
	h.login("contributor")

	out := h.mustRun("upload", "code", "https://github.com/acme/trainer")
	if !strings.Contains(out, "trainer") {
		t.Errorf("upload output:\n%s", out)
	}
	if _, err := h.run("upload", "code", "https://github.com/acme/trainer"); !errors.Is(err, registry.ErrConflict) {
		t.Errorf("duplicate upload error = %v, want ErrConflict", err)
	}
	if _, err := h.run("upload", "weights", "https://x"); !errors.Is(err, registry.ErrInvalidArtifactType) {
		t.Errorf("bad type error = %v, want ErrInvalidArtifactType", err)
	}

	out = h.mustRun("query", "--mode", "wildcard", "--pattern", "bert-*", "--type", "model")
	if !strings.Contains(out, "bert-base-uncased") || !strings.Contains(out, "bert-squad") || strings.Contains(out, "dataset") {
		t.Errorf("wildcard query output:\n%s", out)
	}
	if out := h.mustRun("query", "--mode", "name", "--name", "nothing"); strings.TrimSpace(out) != "No artifacts match." {
		t.Errorf("empty query output = %q", out)
	}
	if _, err := h.run("query", "--mode", "regex", "--name", "x"); err == nil {
		t.Error("regex mode without a regex should fail validation")
	}

	id := artifactIDFor(t, h, "trainer")
	out = h.mustRun("artifact", "code", id)
	if !strings.Contains(out, "https://github.com/acme/trainer") {
		t.Errorf("artifact output:\n%s", out)
	}

	h.login("admin")
	h.mustRun("delete", "code", id)
	if _, err := h.run("artifact", "code", id); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("artifact after delete error = %v, want ErrNotFound", err)
	}
}

func TestCLI_Inspect(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")
	id := artifactIDFor(t, h, "bert-squad")

	out := h.mustRun("inspect", "--dependency", "--html", "inspect.html", id)
	for _, want := range []string{"== Rating ==", "Net Score", "== Lineage ==", "bert-base-uncased", "references unknown node", "== Cost =="} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(h.dir, "reports", "inspect.html")); err != nil {
		t.Errorf("inspect report not written: %v", err)
	}

	out = h.mustRun("lineage", "--dot", "-", id)
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("lineage --dot - should print only DOT:\n%s", out)
	}

	out = h.mustRun("cost", "model", id)
	if !strings.Contains(out, id) {
		t.Errorf("cost output:\n%s", out)
	}

	if _, err := h.run("inspect", "0000000000"); err == nil {
		t.Error("inspecting a missing model should fail")
	}
}

func TestCLI_LicenseCheck(t *testing.T) {
	h := newHarness(t)
	h.login("viewer")
	id := artifactIDFor(t, h, "bert-base-uncased")

	out := h.mustRun("license-check", "--github-url", "https://github.com/acme/trainer", id)
	for _, want := range []string{"compatible", "Repository license: MIT License (MIT)"} {
		if !strings.Contains(out, want) {
			t.Errorf("license-check output missing %q:\n%s", want, out)
		}
	}

	out = h.mustRun("-o", "json", "license-check", "--github-url", "acme/missing", id)
	var result licenseOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode license output: %v\n%s", err, out)
	}
	if result.Compatible == nil || !*result.Compatible {
		t.Errorf("compatible = %v, want true", result.Compatible)
	}
	if result.RepoError == "" {
		t.Error("an unknown repository should be reported on repo_license_error")
	}
}

func TestCLI_Preferences(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("-o", "json", "prefs", "get")
	var prefs map[string]string
	if err := json.Unmarshal([]byte(out), &prefs); err != nil {
		t.Fatalf("decode prefs: %v\n%s", err, out)
	}
	if prefs["color-scheme"] != "system" {
		t.Errorf("default color-scheme = %q", prefs["color-scheme"])
	}

	h.mustRun("prefs", "set", "color-scheme", "dark")
	if out := h.mustRun("prefs", "get", "color-scheme"); !strings.Contains(out, "dark") {
		t.Errorf("prefs get after set = %q", out)
	}
	if _, err := h.run("prefs", "set", "color-scheme", "purple"); err == nil {
		t.Error("expected an invalid color scheme to be rejected")
	}
}

func TestCLI_HealthAndTracks(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("health")
	if !strings.Contains(out, "Uptime") {
		t.Errorf("health output:\n%s", out)
	}
	out = h.mustRun("tracks")
	if !strings.Contains(out, "access control track") {
		t.Errorf("tracks output:\n%s", out)
	}
}

func TestCLI_UnreachableRegistry(t *testing.T) {
	h := newHarness(t)
	cfg, err := config.LoadConfig(h.configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Registry.URL = "http://127.0.0.1:1"
	if err := config.SaveConfig(cfg, h.configPath); err != nil {
		t.Fatal(err)
	}

	_, err = h.run("health")
	if !errors.Is(err, registry.ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if !strings.HasPrefix(err.Error(), "cannot reach registry") {
		t.Errorf("message = %q", err.Error())
	}
}
