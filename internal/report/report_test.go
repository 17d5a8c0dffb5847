package report

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
	"github.com/clean-dependency-project/modelreg/internal/storage"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

func f64(v float64) *float64 { return &v }

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func samplePackage() registry.PackageDetail {
	card := "BERT <base> model"
	size := int64(440 << 20)
	pkg := registry.PackageDetail{
		CardText: &card,
		Meta:     map[string]any{"license": "apache-2.0", "author": "google"},
		Parents:  []string{"p0"},
	}
	pkg.ID, pkg.Name, pkg.Version = "p1", "bert", "1.0.0"
	pkg.SizeBytes = &size
	pkg.Scores = registry.Scores{License: f64(1), BusFactor: f64(0.5)}
	return pkg
}

func TestNormalizeScheme(t *testing.T) {
	tests := map[string]string{
		"light":  storage.ColorSchemeLight,
		"dark":   storage.ColorSchemeDark,
		"system": storage.ColorSchemeSystem,
		"":       storage.ColorSchemeSystem,
		"purple": storage.ColorSchemeSystem,
	}
	for in, want := range tests {
		if got := NormalizeScheme(in); got != want {
			t.Errorf("NormalizeScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderer_Package(t *testing.T) {
	r := testRenderer(t)
	exports := []storage.Export{{Path: "/tmp/p1-rating.ndjson", Source: storage.ExportSourceRatingDocument, SizeBytes: 2048, SHA256: "abc"}}

	var buf bytes.Buffer
	if err := r.Package(&buf, NewPackagePage(samplePackage(), storage.ColorSchemeDark, exports)); err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-color-scheme="dark"`,
		"<title>bert 1.0.0</title>",
		"440.0 MiB",
		"Bus Factor",
		"BERT &lt;base&gt; model",
		"<th>author</th><td>google</td>",
		"2.0 KiB",
		"--accent",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Package() output missing %q", want)
		}
	}
	if strings.Contains(out, "Availability") {
		t.Error("Package() rendered an absent score")
	}
	if strings.Index(out, "author") > strings.Index(out, "license</th>") {
		t.Error("metadata keys are not sorted")
	}
}

func TestRenderer_Inspect(t *testing.T) {
	r := testRenderer(t)
	doc := registry.RatingDocument{Scores: map[string]*float64{"net_score": f64(0.8)}}
	lineage := render.Lineage(registry.Lineage{
		Nodes: []registry.LineageNode{{ArtifactID: "m1", Name: "bert", Source: "model"}},
		Edges: []registry.LineageEdge{{From: "x", To: "m1", Relationship: "base_model"}},
	})
	charts := render.RatingCharts(doc)
	v := view.InspectView{
		ID:      "m1",
		Rating:  render.RatingTable(doc),
		Charts:  &charts,
		Lineage: &lineage,
		Errors:  map[string]string{"cost": "Artifact not found"},
	}

	var buf bytes.Buffer
	if err := r.Inspect(&buf, NewInspectPage(v, "")); err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-color-scheme="system"`,
		"Net Score",
		`id="chart-data"`,
		`"radar"`,
		"rankdir=TB",
		"references unknown node",
		`<p class="error">Artifact not found</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Inspect() output missing %q", want)
		}
	}
}

func TestRenderer_WritePackageIsIdempotent(t *testing.T) {
	r := testRenderer(t)
	path := filepath.Join(t.TempDir(), "reports", "p1.html")
	page := NewPackagePage(samplePackage(), "", nil)

	written, err := r.WritePackage(path, page)
	if err != nil || !written {
		t.Fatalf("first WritePackage() = %v, %v; want true, nil", written, err)
	}
	written, err = r.WritePackage(path, page)
	if err != nil || written {
		t.Fatalf("second WritePackage() = %v, %v; want false, nil", written, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report not on disk: %v", err)
	}
}

func TestWriteFileIfChanged(t *testing.T) {
	tests := []struct {
		name        string
		initialData []byte
		newData     []byte
		shouldWrite bool
	}{
		{name: "new file", newData: []byte("test content"), shouldWrite: true},
		{name: "file unchanged", initialData: []byte("test content"), newData: []byte("test content"), shouldWrite: false},
		{name: "file changed", initialData: []byte("old content"), newData: []byte("new content"), shouldWrite: true},
		{name: "empty file", newData: []byte(""), shouldWrite: true},
		{name: "large unchanged", initialData: bytes.Repeat([]byte("x"), 4096), newData: bytes.Repeat([]byte("x"), 4096), shouldWrite: false},
		{name: "large changed in last byte", initialData: append(bytes.Repeat([]byte("x"), 4095), 'a'), newData: append(bytes.Repeat([]byte("x"), 4095), 'b'), shouldWrite: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(t.TempDir(), "test.txt")
			if tt.initialData != nil {
				if err := os.WriteFile(filePath, tt.initialData, 0o644); err != nil {
					t.Fatalf("Failed to create initial file: %v", err)
				}
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			written, err := writeFileIfChanged(filePath, tt.newData, logger)
			if err != nil {
				t.Fatalf("writeFileIfChanged() error = %v", err)
			}
			if written != tt.shouldWrite {
				t.Errorf("writeFileIfChanged() written = %v, want %v", written, tt.shouldWrite)
			}

			content, err := os.ReadFile(filePath)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if string(content) != string(tt.newData) {
				t.Errorf("File content = %q, want %q", content, tt.newData)
			}
		})
	}
}
