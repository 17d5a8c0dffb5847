package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	gh "github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
	"github.com/clean-dependency-project/modelreg/internal/report"
	"github.com/clean-dependency-project/modelreg/internal/storage"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

func queryArtifacts(c *cli.Context, e *env) error {
	q := view.NewQuery(e.client, view.WithLogger(e.stderr))
	results, err := q.Run(c.Context, view.QueryForm{
		Mode:    view.Mode(c.String("mode")),
		Name:    c.String("name"),
		Regex:   c.String("regex"),
		Pattern: c.String("pattern"),
		Types:   c.StringSlice("type"),
	})
	if err != nil {
		return describe(err)
	}
	if results == nil {
		results = []registry.ArtifactMetadata{}
	}
	return e.emit(results, func(w io.Writer) error {
		if len(results) == 0 {
			_, err := fmt.Fprintln(w, "No artifacts match.")
			return err
		}
		return render.ArtifactTable(results).Write(w)
	})
}

func writeArtifact(w io.Writer, a *registry.Artifact) error {
	t := render.Table{Rows: [][]string{
		{"ID", a.Metadata.ID},
		{"Name", a.Metadata.Name},
		{"Type", a.Metadata.Type},
		{"URL", a.Data.URL},
	}}
	if a.Data.DownloadURL != nil {
		t.Rows = append(t.Rows, []string{"Download", *a.Data.DownloadURL})
	}
	return t.Write(w)
}

func uploadArtifact(c *cli.Context, e *env) error {
	a, err := args(c, "TYPE URL", 2)
	if err != nil {
		return err
	}
	var name *string
	if n := c.String("name"); n != "" {
		name = &n
	}
	artifact, err := e.client.UploadArtifact(c.Context, a[0], a[1], name)
	if err != nil {
		return describe(err)
	}
	e.stdout.Info("artifact uploaded", "type", artifact.Metadata.Type, "id", artifact.Metadata.ID)
	return e.emit(artifact, func(w io.Writer) error {
		return writeArtifact(w, artifact)
	})
}

func showArtifact(c *cli.Context, e *env) error {
	a, err := args(c, "TYPE ID", 2)
	if err != nil {
		return err
	}
	artifact, err := e.client.GetArtifact(c.Context, a[0], a[1])
	if err != nil {
		return describe(err)
	}
	return e.emit(artifact, func(w io.Writer) error {
		return writeArtifact(w, artifact)
	})
}

func deleteArtifact(c *cli.Context, e *env) error {
	a, err := args(c, "TYPE ID", 2)
	if err != nil {
		return err
	}
	if err := e.client.DeleteArtifact(c.Context, a[0], a[1]); err != nil {
		return describe(err)
	}
	e.stdout.Info("artifact deleted", "type", a[0], "id", a[1])
	return e.emit(map[string]string{"deleted": a[1]}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted %s %s\n", a[0], a[1])
		return err
	})
}

// reportPath places a bare report file name in the configured report directory.
func reportPath(e *env, path string) string {
	if filepath.IsAbs(path) || filepath.Dir(path) != "." {
		return path
	}
	return filepath.Join(e.cfg.UI.ReportDir, path)
}

// writeFile writes data to path, creating parent directories. A path of "-" writes to w.
func writeFile(w io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeWarnings(w io.Writer, warnings []render.Warning) error {
	for _, warning := range warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

func writeLineage(w io.Writer, v render.LineageView) error {
	nodes, edges := render.LineageTables(v)
	if err := nodes.Write(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := edges.Write(w); err != nil {
		return err
	}
	return writeWarnings(w, v.Warnings)
}

func writeCost(w io.Writer, v render.CostView) error {
	if err := render.CostTable(v).Write(w); err != nil {
		return err
	}
	return writeWarnings(w, v.Warnings)
}

// section prints a heading followed by either the part's inline error or its body.
func section(w io.Writer, title, errMsg string, body func() error) error {
	if _, err := fmt.Fprintf(w, "== %s ==\n", title); err != nil {
		return err
	}
	if errMsg != "" {
		_, err := fmt.Fprintf(w, "error: %s\n\n", errMsg)
		return err
	}
	if err := body(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func inspectModel(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	i := view.NewInspect(e.client, view.WithLogger(e.stderr))
	if err := i.Load(c.Context, a[0], c.Bool("dependency")); err != nil && !errors.Is(err, view.ErrInspectFailed) {
		return describe(err)
	}
	v := i.View()

	if path := c.String("dot"); path != "" && v.Lineage != nil {
		if err := writeFile(e.out, path, []byte(render.DOT(v.Lineage.Graph))); err != nil {
			return err
		}
	}
	if path := c.String("html"); path != "" {
		scheme, err := e.state.GetPreference(storage.PrefColorScheme)
		if err != nil {
			return err
		}
		r, err := report.New(e.stderr)
		if err != nil {
			return err
		}
		if _, err := r.WriteInspect(reportPath(e, path), report.NewInspectPage(v, scheme)); err != nil {
			return err
		}
	}

	err = e.emit(v, func(w io.Writer) error {
		if err := section(w, "Rating", v.Errors["rating"], func() error {
			if len(v.Rating) == 0 {
				_, err := fmt.Fprintln(w, "No metrics reported.")
				return err
			}
			return render.RatingTableRows(v.Rating).Write(w)
		}); err != nil {
			return err
		}
		if err := section(w, "Lineage", v.Errors["lineage"], func() error {
			return writeLineage(w, *v.Lineage)
		}); err != nil {
			return err
		}
		return section(w, "Cost", v.Errors["cost"], func() error {
			return writeCost(w, *v.Cost)
		})
	})
	if err != nil {
		return err
	}
	if len(v.Errors) == 3 {
		return describe(fmt.Errorf("%w: %s", view.ErrInspectFailed, v.Errors["rating"]))
	}
	return nil
}

func showLineage(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	doc, err := e.client.Lineage(c.Context, a[0])
	if err != nil {
		return describe(err)
	}
	v := render.Lineage(*doc)
	for _, w := range v.Warnings {
		e.stderr.Warn("lineage degraded", "id", a[0], "kind", w.Kind, "warning", w.Message)
	}

	if path := c.String("dot"); path != "" {
		if err := writeFile(e.out, path, []byte(render.DOT(v.Graph))); err != nil {
			return err
		}
		if path == "-" {
			return nil
		}
	}
	return e.emit(v, func(w io.Writer) error {
		return writeLineage(w, v)
	})
}

func showCost(c *cli.Context, e *env) error {
	a, err := args(c, "TYPE ID", 2)
	if err != nil {
		return err
	}
	costs, err := e.client.Cost(c.Context, a[0], a[1], c.Bool("dependency"))
	if err != nil {
		return describe(err)
	}
	v := render.Cost(a[1], costs)
	return e.emit(v, func(w io.Writer) error {
		return writeCost(w, v)
	})
}

func githubProbe(e *env) (*gh.Client, error) {
	if e.cfg.GitHub.APIURL != "" {
		return gh.NewClientForURL(e.cfg.GitHub.Token, e.cfg.GitHub.APIURL)
	}
	return gh.NewClient(e.cfg.GitHub.Token), nil
}

// licenseOutput is the JSON form of a license check.
type licenseOutput struct {
	ID         string          `json:"id"`
	GitHubURL  string          `json:"github_url"`
	Compatible *bool           `json:"compatible"`
	Message    string          `json:"message,omitempty"`
	Repo       *gh.RepoLicense `json:"repo_license,omitempty"`
	RepoError  string          `json:"repo_license_error,omitempty"`
}

func licenseCheck(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	probe, err := githubProbe(e)
	if err != nil {
		return err
	}
	l := view.NewLicense(e.client, probe, view.WithLogger(e.stderr))
	result, err := l.Check(c.Context, a[0], c.String("github-url"))
	if err != nil {
		return describe(err)
	}
	state := l.State()
	out := licenseOutput{
		ID:         state.ID,
		GitHubURL:  state.GitHubURL,
		Compatible: result.Compatible,
		Message:    result.Message,
		Repo:       state.Repo,
	}
	if state.RepoErr != nil {
		out.RepoError = view.Describe(state.RepoErr)
	}

	return e.emit(out, func(w io.Writer) error {
		verdict := result.Message
		if result.Compatible != nil {
			verdict = "not compatible"
			if *result.Compatible {
				verdict = "compatible"
			}
		}
		if _, err := fmt.Fprintf(w, "License check for %s against %s: %s\n", out.ID, out.GitHubURL, verdict); err != nil {
			return err
		}
		switch {
		case out.Repo != nil:
			_, err := fmt.Fprintf(w, "Repository license: %s (%s)\n", out.Repo.Name, out.Repo.SPDXID)
			return err
		case out.RepoError != "":
			_, err := fmt.Fprintf(w, "Repository license unavailable: %s\n", out.RepoError)
			return err
		}
		return nil
	})
}
