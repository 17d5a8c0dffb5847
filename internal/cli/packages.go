package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/render"
	"github.com/clean-dependency-project/modelreg/internal/report"
	"github.com/clean-dependency-project/modelreg/internal/storage"
	"github.com/clean-dependency-project/modelreg/internal/version"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

// args returns exactly n positional arguments or a usage error.
func args(c *cli.Context, usage string, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%w: expected %s", ErrUsage, usage)
	}
	return c.Args().Slice(), nil
}

func login(c *cli.Context, e *env) error {
	result := e.session.Login(c.Context, c.String("username"), c.String("password"))
	if !result.Success {
		e.stderr.Warn("login failed", "username", c.String("username"), "error", result.Err)
		return describe(result.Err)
	}
	user := e.session.User()
	e.stdout.Info("logged in", "username", user.Username, "role", user.Role)
	return e.emit(user, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Logged in as %s (%s)\n", user.Username, user.Role)
		return err
	})
}

func logout(c *cli.Context, e *env) error {
	if err := e.session.Logout(); err != nil {
		return err
	}
	return e.emit(map[string]bool{"logged_out": true}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "Logged out")
		return err
	})
}

func whoami(c *cli.Context, e *env) error {
	user := e.session.User()
	return e.emit(user, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s (%s)\n", user.Username, user.Role)
		return err
	})
}

// listOutput is the JSON form of a listing page.
type listOutput struct {
	Page       int                       `json:"page"`
	TotalPages int                       `json:"total_pages"`
	Limit      int                       `json:"limit"`
	Total      int                       `json:"total"`
	Items      []registry.PackageSummary `json:"items"`
}

func listPackages(c *cli.Context, e *env) error {
	limit := c.Int("limit")
	if limit <= 0 {
		limit = e.cfg.UI.PageSize
	}
	l := view.NewListing(e.client, limit, view.WithLogger(e.stderr))

	var err error
	if q, ver := c.String("q"), c.String("version"); q != "" || ver != "" {
		err = l.Search(c.Context, q, ver)
	} else {
		err = l.Refresh(c.Context)
	}
	if err == nil && c.Int("page") > 1 {
		err = l.GoTo(c.Context, c.Int("page"))
	}
	if err != nil {
		return describe(err)
	}

	state := l.State()
	out := listOutput{
		Page:       state.Page.Page,
		TotalPages: state.Page.TotalPages(),
		Limit:      state.Page.Limit,
		Total:      state.Page.Total,
		Items:      state.Items,
	}
	if out.Items == nil {
		out.Items = []registry.PackageSummary{}
	}
	return e.emit(out, func(w io.Writer) error {
		if state.Empty {
			_, err := fmt.Fprintln(w, "No packages match.")
			return err
		}
		if err := render.PackageTable(state.Items).Write(w); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nPage %d of %d (%d packages)\n", out.Page, out.TotalPages, out.Total)
		return err
	})
}

// packageFacts renders the scalar fields of a package as a two-column table.
func packageFacts(pkg *registry.PackageDetail) render.Table {
	size := render.Placeholder
	if pkg.SizeBytes != nil {
		size = render.FormatBytes(*pkg.SizeBytes)
	}
	t := render.Table{Rows: [][]string{
		{"ID", pkg.ID},
		{"Name", pkg.Name},
		{"Version", pkg.Version},
		{"Size", size},
	}}
	if len(pkg.Parents) > 0 {
		t.Rows = append(t.Rows, []string{"Parents", strings.Join(pkg.Parents, ", ")})
	}
	return t
}

func scoreTable(scores registry.Scores) render.Table {
	t := render.Table{Header: []string{"METRIC", "SCORE"}}
	for _, s := range render.ScoreList(scores) {
		t.Rows = append(t.Rows, []string{s.Label, s.Score})
	}
	return t
}

func writePackage(w io.Writer, pkg *registry.PackageDetail) error {
	if err := packageFacts(pkg).Write(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	scores := scoreTable(pkg.Scores)
	if len(scores.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No scores reported.")
		return err
	}
	return scores.Write(w)
}

func showPackage(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	d := view.NewDetail(e.client, e.session, e.state, view.WithLogger(e.stderr))
	if err := d.Load(c.Context, a[0]); err != nil {
		return describe(err)
	}
	pkg := d.State().Package

	if path := c.String("html"); path != "" {
		if err := writePackageReport(e, path, pkg); err != nil {
			return err
		}
	}
	return e.emit(pkg, func(w io.Writer) error {
		return writePackage(w, pkg)
	})
}

func writePackageReport(e *env, path string, pkg *registry.PackageDetail) error {
	scheme, err := e.state.GetPreference(storage.PrefColorScheme)
	if err != nil {
		return err
	}
	exports, err := e.state.ListExports(pkg.ID)
	if err != nil {
		return err
	}
	r, err := report.New(e.stderr)
	if err != nil {
		return err
	}
	_, err = r.WritePackage(reportPath(e, path), report.NewPackagePage(*pkg, scheme, exports))
	return err
}

func createPackage(c *cli.Context, e *env) error {
	ver := strings.TrimSpace(c.String("version"))
	if err := version.ValidateVersion(ver); err != nil {
		return err
	}
	req := registry.PackageCreate{
		Name:      strings.TrimSpace(c.String("name")),
		Version:   ver,
		Parents:   c.StringSlice("parent"),
		Sensitive: c.Bool("sensitive"),
	}
	if req.Parents == nil {
		req.Parents = []string{}
	}
	if card := c.String("card"); card != "" {
		req.CardText = &card
	}
	for _, kv := range c.StringSlice("meta") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: meta entry %q is not key=value", ErrUsage, kv)
		}
		if req.Meta == nil {
			req.Meta = make(map[string]string)
		}
		req.Meta[k] = v
	}

	pkg, err := e.client.CreatePackage(c.Context, req)
	if err != nil {
		return describe(err)
	}
	e.stdout.Info("package created", "id", pkg.ID, "name", pkg.Name, "version", pkg.Version)
	return e.emit(pkg, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created %s %s as %s\n", pkg.Name, pkg.Version, pkg.ID)
		return err
	})
}

// submitOutput is the JSON form of a successful submission.
type submitOutput struct {
	Result *registry.IngestResult `json:"result"`
	Target string                 `json:"target"`
}

func submitModel(c *cli.Context, e *env) error {
	s := view.NewSubmit(e.client, e.cfg.UI.GetRedirectDelay(), view.WithLogger(e.stderr))
	form := view.SubmitForm{
		ModelURL:   c.String("model-url"),
		CodeURL:    c.String("code-url"),
		DatasetURL: c.String("dataset-url"),
		Name:       c.String("name"),
		Version:    c.String("version"),
	}
	outcome, err := s.Submit(c.Context, form)
	if outcome == nil {
		return describe(err)
	}
	e.stdout.Info("model submitted", "id", outcome.Result.ID, "target", outcome.Target)
	return e.emit(submitOutput{Result: outcome.Result, Target: outcome.Target}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s\nNext: modelreg show %s\n", s.State().Confirmation, outcome.Result.ID)
		return err
	})
}

func ratePackage(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	d := view.NewDetail(e.client, e.session, e.state, view.WithLogger(e.stderr))
	if err := d.Load(c.Context, a[0]); err != nil {
		return describe(err)
	}
	if _, err := d.Rate(c.Context); err != nil {
		return describe(err)
	}
	pkg := d.State().Package
	e.stdout.Info("package rated", "id", pkg.ID)
	return e.emit(pkg, func(w io.Writer) error {
		return writePackage(w, pkg)
	})
}

func downloadRecord(c *cli.Context, e *env) error {
	a, err := args(c, "ID", 1)
	if err != nil {
		return err
	}
	dir := c.String("dir")
	if dir == "" {
		dir = e.cfg.UI.DownloadDir
	}
	d := view.NewDetail(e.client, e.session, e.state, view.WithLogger(e.stderr))
	if err := d.Load(c.Context, a[0]); err != nil {
		return describe(err)
	}
	export, err := d.DownloadRecord(c.Context, dir)
	if err != nil {
		return describe(err)
	}
	return e.emit(export, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Wrote %s (%s, sha256 %s)\n", export.Path, render.FormatBytes(export.SizeBytes), export.SHA256)
		return err
	})
}

func listExports(c *cli.Context, e *env) error {
	if c.NArg() > 1 {
		return fmt.Errorf("%w: expected [ID]", ErrUsage)
	}
	id := c.Args().First()
	if e.format == "json" {
		data, err := e.state.ExportsJSON(id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(e.out, string(data))
		return err
	}

	exports, err := e.state.ListExports(id)
	if err != nil {
		return err
	}
	if len(exports) == 0 {
		_, err := fmt.Fprintln(e.out, "No records downloaded.")
		return err
	}
	t := render.Table{Header: []string{"ARTIFACT", "PATH", "SOURCE", "SIZE", "SHA256", "WHEN"}}
	for _, x := range exports {
		t.Rows = append(t.Rows, []string{x.ArtifactID, x.Path, x.Source, render.FormatBytes(x.SizeBytes), x.SHA256, x.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	return t.Write(e.out)
}

func getPreference(c *cli.Context, e *env) error {
	keys := storage.PreferenceKeys()
	if c.NArg() == 1 {
		keys = []string{c.Args().First()}
	} else if c.NArg() > 1 {
		return fmt.Errorf("%w: expected [KEY]", ErrUsage)
	}

	prefs := make(map[string]string, len(keys))
	t := render.Table{}
	for _, k := range keys {
		v, err := e.state.GetPreference(k)
		if err != nil {
			return err
		}
		prefs[k] = v
		t.Rows = append(t.Rows, []string{k, v})
	}
	return e.emit(prefs, t.Write)
}

func setPreference(c *cli.Context, e *env) error {
	a, err := args(c, "KEY VALUE", 2)
	if err != nil {
		return err
	}
	if err := e.state.SetPreference(a[0], a[1]); err != nil {
		return err
	}
	e.stdout.Info("preference saved", "key", a[0], "value", a[1])
	return e.emit(map[string]string{a[0]: a[1]}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s = %s\n", a[0], a[1])
		return err
	})
}

func showHealth(c *cli.Context, e *env) error {
	h, err := e.client.Health(c.Context)
	if err != nil {
		return describe(err)
	}
	return e.emit(h, func(w io.Writer) error {
		t := render.Table{Rows: [][]string{
			{"Uptime", fmt.Sprintf("%.0fs", h.UptimeSeconds)},
			{"Successful requests", fmt.Sprint(h.Success)},
			{"Failed requests", fmt.Sprint(h.Errors)},
		}}
		if err := t.Write(w); err != nil {
			return err
		}
		for _, warning := range h.RecentWarnings {
			if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
				return err
			}
		}
		return nil
	})
}

func showTracks(c *cli.Context, e *env) error {
	tracks, err := e.client.Tracks(c.Context)
	if err != nil {
		return describe(err)
	}
	return e.emit(tracks, func(w io.Writer) error {
		t := render.Table{Header: []string{"TRACK", "DESCRIPTION"}}
		for _, tr := range tracks {
			t.Rows = append(t.Rows, []string{tr.Name, tr.Description})
		}
		return t.Write(w)
	})
}
