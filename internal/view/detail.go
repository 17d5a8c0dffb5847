package view

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/storage"
)

// DetailAPI is the registry surface the detail screen needs.
type DetailAPI interface {
	GetPackage(ctx context.Context, id string) (*registry.PackageDetail, error)
	GetPackageRaw(ctx context.Context, id string) ([]byte, error)
	RatePackage(ctx context.Context, id string) (*registry.Scores, error)
	RatingDocument(ctx context.Context, id string) (*registry.RatingRecord, error)
}

// Identity reports the signed-in user. *session.Store satisfies it.
type Identity interface {
	User() *registry.User
}

// ExportRecorder keeps a history of downloaded records. *storage.DB satisfies it.
type ExportRecorder interface {
	RecordExport(export *storage.Export) error
}

// DetailState is a snapshot of the detail screen.
type DetailState struct {
	ID      string
	Package *registry.PackageDetail
	Loading bool
	Rating  bool
	Err     error
	// LastExport is the most recent downloaded record.
	LastExport *storage.Export
}

// Message returns the inline error text, if any.
func (s DetailState) Message() string {
	return Describe(s.Err)
}

// Detail shows one package and offers the rate and download actions.
type Detail struct {
	controller
	api     DetailAPI
	who     Identity
	exports ExportRecorder
	now     func() time.Time
	state   DetailState
}

// NewDetail creates a detail controller. who and exports may be nil; without an identity
// the rate action is unavailable, and without a recorder downloads are not recorded.
func NewDetail(api DetailAPI, who Identity, exports ExportRecorder, opts ...Option) *Detail {
	d := &Detail{api: api, who: who, exports: exports, now: time.Now}
	d.init("detail", opts)
	return d
}

// State returns a copy of the current state.
func (d *Detail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Load fetches the package with the given id.
func (d *Detail) Load(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		err := invalid("id", "is required")
		d.mu.Lock()
		d.state.Err = err
		d.mu.Unlock()
		return err
	}

	d.mu.Lock()
	gen, err := d.begin()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if d.state.ID != id {
		d.state.Package = nil
		d.state.LastExport = nil
	}
	d.state.ID = id
	d.state.Loading = true
	d.state.Err = nil
	d.mu.Unlock()

	pkg, err := d.api.GetPackage(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current(gen) {
		return nil
	}
	d.state.Loading = false
	if err != nil {
		d.state.Err = err
		return err
	}
	d.state.Package = pkg
	return nil
}

// CanRate reports whether the signed-in user may trigger a rating.
func (d *Detail) CanRate() bool {
	if d.who == nil {
		return false
	}
	u := d.who.User()
	return u != nil && registry.RoleRank(u.Role) >= registry.RoleRank(registry.RoleContributor)
}

// Rate triggers a rating of the loaded package and then re-fetches its detail. The
// returned scores are informational; the displayed record always comes from the refetch.
func (d *Detail) Rate(ctx context.Context) (*registry.Scores, error) {
	d.mu.Lock()
	id := d.state.ID
	d.mu.Unlock()

	var verr error
	switch {
	case id == "":
		verr = invalid("id", "load a package before rating it")
	case !d.CanRate():
		verr = invalid("role", "rating requires the contributor or admin role")
	}
	if verr != nil {
		d.mu.Lock()
		d.state.Err = verr
		d.mu.Unlock()
		return nil, verr
	}

	d.mu.Lock()
	if d.unmounted {
		d.mu.Unlock()
		return nil, ErrUnmounted
	}
	d.state.Rating = true
	d.state.Err = nil
	d.mu.Unlock()

	scores, err := d.api.RatePackage(ctx, id)

	d.mu.Lock()
	d.state.Rating = false
	if err != nil {
		if !d.unmounted && d.state.ID == id {
			d.state.Err = err
		}
		d.mu.Unlock()
		return nil, err
	}
	unmounted := d.unmounted
	d.mu.Unlock()
	if unmounted {
		return scores, nil
	}

	if err := d.Load(ctx, id); err != nil && !errors.Is(err, ErrUnmounted) {
		return scores, err
	}
	return scores, nil
}

// RecordFileName returns the file name used for a downloaded record.
func RecordFileName(id, source string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
	if source == storage.ExportSourceDetail {
		return safe + "-detail.json"
	}
	return safe + "-rating.ndjson"
}

// DownloadRecord fetches the machine-readable rating document of the loaded package and
// writes the served bytes into dir. When the registry has no rating document for the
// package, the freshly fetched detail record is written as JSON instead.
func (d *Detail) DownloadRecord(ctx context.Context, dir string) (*storage.Export, error) {
	d.mu.Lock()
	id := d.state.ID
	d.mu.Unlock()
	if id == "" {
		err := invalid("id", "load a package before downloading its record")
		d.mu.Lock()
		d.state.Err = err
		d.mu.Unlock()
		return nil, err
	}
	if dir == "" {
		dir = "."
	}

	source := storage.ExportSourceRatingDocument
	var data []byte
	record, err := d.api.RatingDocument(ctx, id)
	switch {
	case err == nil:
		data = record.Raw
	case errors.Is(err, registry.ErrNotFound):
		source = storage.ExportSourceDetail
		data, err = d.api.GetPackageRaw(ctx, id)
	}
	if err != nil {
		d.setErr(id, err)
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("failed to create download directory: %w", err)
		d.setErr(id, err)
		return nil, err
	}
	path := filepath.Join(dir, RecordFileName(id, source))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		err = fmt.Errorf("failed to write record: %w", err)
		d.setErr(id, err)
		return nil, err
	}

	sum := sha256.Sum256(data)
	export := &storage.Export{
		ArtifactID: id,
		Path:       path,
		Source:     source,
		SizeBytes:  int64(len(data)),
		SHA256:     hex.EncodeToString(sum[:]),
		CreatedAt:  d.now().UTC(),
	}
	if d.exports != nil {
		if err := d.exports.RecordExport(export); err != nil {
			d.logger.Warn("failed to record export", "artifact_id", id, "path", path, "error", err)
		}
	}

	d.mu.Lock()
	if !d.unmounted && d.state.ID == id {
		d.state.LastExport = export
		d.state.Err = nil
	}
	d.mu.Unlock()
	return export, nil
}

func (d *Detail) setErr(id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.unmounted && d.state.ID == id {
		d.state.Err = err
	}
}
