package mockregistry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/version"
)

const maxRegexLen = 256

// compileSearch compiles a listing or artifact search pattern with the registry's limits.
func compileSearch(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > maxRegexLen {
		return nil, fmt.Errorf("regex too long")
	}
	if strings.Count(pattern, "(") > 32 {
		return nil, fmt.Errorf("regex too complex")
	}
	return regexp.Compile(pattern)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func (s *Server) listPackages(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		invalid(c, err.Error())
		return
	}
	limit, err := queryInt(c, "limit", DefaultPageSize)
	if err != nil {
		invalid(c, err.Error())
		return
	}
	limit = min(limit, MaxPageSize)

	var re *regexp.Regexp
	if q := c.Query("q"); q != "" {
		if re, err = compileSearch(q); err != nil {
			fail(c, http.StatusBadRequest, "Invalid regex: "+err.Error())
			return
		}
	}
	var filter *version.Filter
	if v := c.Query("version"); v != "" {
		f, err := version.ParseFilter(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid version filter: "+v)
			return
		}
		filter = &f
	}

	matched := make([]registry.PackageSummary, 0)
	for _, p := range s.store.listPackages() {
		if re != nil && !re.MatchString(p.Name) && (p.CardText == nil || !re.MatchString(*p.CardText)) {
			continue
		}
		if filter != nil && !filter.Matches(p.Version) {
			continue
		}
		matched = append(matched, p.PackageSummary)
	}

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	c.JSON(http.StatusOK, registry.PackagePage{
		Page:  page,
		Limit: limit,
		Total: len(matched),
		Items: matched[start:end],
	})
}

func (s *Server) getPackage(c *gin.Context) {
	p, ok := s.store.pkg(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	c.JSON(http.StatusOK, p.PackageDetail)
}

func (s *Server) createPackage(c *gin.Context) {
	var body registry.PackageCreate
	if err := c.ShouldBindJSON(&body); err != nil {
		invalid(c, "invalid body: "+err.Error())
		return
	}
	var msgs []string
	if strings.TrimSpace(body.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if err := version.ValidateVersion(body.Version); err != nil {
		msgs = append(msgs, fmt.Sprintf("version %q is not a semantic version", body.Version))
	}
	if len(msgs) > 0 {
		invalid(c, msgs...)
		return
	}

	rec := &pkgRecord{
		PackageDetail: registry.PackageDetail{
			PackageSummary: registry.PackageSummary{
				ID:      uuid.NewString(),
				Name:    strings.TrimSpace(body.Name),
				Version: body.Version,
			},
			CardText: body.CardText,
			Parents:  body.Parents,
		},
		Sensitive: body.Sensitive,
		Source:    body.Name + "@" + body.Version,
	}
	if rec.Parents == nil {
		rec.Parents = []string{}
	}
	if len(body.Meta) > 0 {
		rec.Meta = make(map[string]any, len(body.Meta))
		for k, v := range body.Meta {
			rec.Meta[k] = v
		}
	}
	s.store.putPackage(rec)
	s.logger.Info("package created", "id", rec.ID, "name", rec.Name, "version", rec.Version,
		"by", currentClaims(c).Subject)
	c.JSON(http.StatusOK, rec.PackageDetail)
}

func (s *Server) deletePackage(c *gin.Context) {
	if !s.store.deletePackage(c.Param("id")) {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ingest(c *gin.Context) {
	var req registry.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid body: "+err.Error())
		return
	}
	modelURL := strings.TrimSpace(req.ModelURL)
	if modelURL == "" {
		invalid(c, "model_url is required")
		return
	}
	ver := strings.TrimSpace(req.Version)
	if ver == "" {
		ver = "1.0.0"
	}
	if err := version.ValidateVersion(ver); err != nil {
		invalid(c, fmt.Sprintf("version %q is not a semantic version", ver))
		return
	}
	name := nameFromURL(modelURL)
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name = strings.TrimSpace(*req.Name)
	}

	scores := s.opts.Scorer(modelURL)
	if metric, v, rejected := rejection(scores); rejected {
		s.warn("ingest rejected", "model_url", modelURL, "metric", metric, "value", v)
		fail(c, http.StatusBadRequest, fmt.Sprintf("Rejected: %s=%.2f < %.1f", metric, v, IngestThreshold))
		return
	}

	rec := &pkgRecord{
		PackageDetail: registry.PackageDetail{
			PackageSummary: registry.PackageSummary{
				ID:      uuid.NewString(),
				Name:    name,
				Version: ver,
				Scores:  scores,
			},
			Meta:    map[string]any{"model_url": modelURL},
			Parents: []string{},
		},
		Source: modelURL,
	}
	if req.CodeURL != nil {
		rec.Meta["code_url"] = *req.CodeURL
	}
	if req.DatasetURL != nil {
		rec.Meta["dataset_url"] = *req.DatasetURL
	}
	s.store.putPackage(rec)
	s.logger.Info("model ingested", "id", rec.ID, "name", name, "version", ver)

	c.JSON(http.StatusOK, registry.IngestResult{
		ID:      rec.ID,
		Name:    rec.Name,
		Version: rec.Version,
		Scores:  scores,
	})
}

func (s *Server) ratePackage(c *gin.Context) {
	id := c.Param("id")
	p, ok := s.store.pkg(id)
	if !ok {
		fail(c, http.StatusNotFound, "Package not found")
		return
	}
	p, _ = s.store.setScores(id, s.opts.Scorer(p.Source))
	c.JSON(http.StatusOK, p.Scores)
}

// ratingRecord serves the package's rating document as one NDJSON line.
func (s *Server) ratingRecord(c *gin.Context) {
	p, ok := s.store.pkg(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Package not found")
		return
	}
	line, err := json.Marshal(ratingDocument(p.Name, p.Source, p.Scores))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to encode rating")
		return
	}
	c.Data(http.StatusOK, "application/x-ndjson", append(line, '\n'))
}
