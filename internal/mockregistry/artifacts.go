package mockregistry

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	gh "github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// literalName matches regex queries that are really a plain name, optionally anchored.
var literalName = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)

// addArtifact stores a new artifact whose id is derived from its type and URL.
func (s *Server) addArtifact(artifactType, url, name, license string, parents []string) (*artifactRecord, error) {
	if err := registry.ValidateType(artifactType); err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is required")
	}
	if strings.TrimSpace(name) == "" {
		name = nameFromURL(url)
	}
	rec := &artifactRecord{
		Artifact: registry.Artifact{
			Metadata: registry.ArtifactMetadata{
				Name: strings.TrimSpace(name),
				ID:   artifactID(artifactType, url),
				Type: artifactType,
			},
			Data: registry.ArtifactData{URL: url, DownloadURL: &url},
		},
		License: license,
		Parents: parents,
	}
	if err := s.store.addArtifact(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Server) uploadArtifact(c *gin.Context) {
	artifactType := c.Param("type")
	if registry.ValidateType(artifactType) != nil {
		fail(c, http.StatusBadRequest, "Invalid artifact_type")
		return
	}
	var body registry.ArtifactData
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}
	var name string
	if body.Name != nil {
		name = *body.Name
	}

	rec, err := s.addArtifact(artifactType, body.URL, name, "", nil)
	if errors.Is(err, ErrExists) {
		fail(c, http.StatusConflict, "Artifact exists already")
		return
	}
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("artifact uploaded", "type", artifactType, "id", rec.Metadata.ID, "name", rec.Metadata.Name)
	c.JSON(http.StatusCreated, rec.Artifact)
}

// typedArtifact loads the artifact named by the :type and :id parameters, answering the
// request itself when it cannot.
func (s *Server) typedArtifact(c *gin.Context) (artifactRecord, bool) {
	artifactType, id := c.Param("type"), c.Param("id")
	if registry.ValidateType(artifactType) != nil {
		fail(c, http.StatusBadRequest, "Invalid artifact_type")
		return artifactRecord{}, false
	}
	if registry.ValidateID(id) != nil {
		fail(c, http.StatusBadRequest, "Invalid artifact id")
		return artifactRecord{}, false
	}
	a, ok := s.store.artifact(id)
	if !ok {
		fail(c, http.StatusNotFound, "Artifact does not exist")
		return artifactRecord{}, false
	}
	if a.Metadata.Type != artifactType {
		fail(c, http.StatusBadRequest, "Artifact type mismatch")
		return artifactRecord{}, false
	}
	return a, true
}

func (s *Server) model(c *gin.Context) (artifactRecord, bool) {
	c.Params = append(c.Params, gin.Param{Key: "type", Value: registry.TypeModel})
	return s.typedArtifact(c)
}

func (s *Server) getArtifact(c *gin.Context) {
	a, ok := s.typedArtifact(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.Artifact)
}

func (s *Server) deleteArtifact(c *gin.Context) {
	a, ok := s.typedArtifact(c)
	if !ok {
		return
	}
	s.store.deleteArtifact(a.Metadata.ID)
	s.logger.Info("artifact deleted", "type", a.Metadata.Type, "id", a.Metadata.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Artifact deleted"})
}

func hasType(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// queryArtifacts answers each query in order. "*" enumerates every artifact of the
// requested types once; any other name returns the lowest-id exact match.
func (s *Server) queryArtifacts(c *gin.Context) {
	var queries []registry.ArtifactQuery
	if err := c.ShouldBindJSON(&queries); err != nil {
		fail(c, http.StatusBadRequest, "invalid query body")
		return
	}
	offset := c.Query("offset")
	if offset == "" {
		offset = "0"
	}
	c.Header("offset", offset)

	all := s.store.listArtifacts()
	results := make([]registry.ArtifactMetadata, 0)
	seen := make(map[string]bool)
	for _, q := range queries {
		for _, t := range q.Types {
			if registry.ValidateType(t) != nil {
				fail(c, http.StatusBadRequest, "Invalid artifact type in query: "+t)
				return
			}
		}

		if q.Name == "*" {
			for _, a := range all {
				if hasType(q.Types, a.Metadata.Type) && !seen[a.Metadata.ID] {
					seen[a.Metadata.ID] = true
					results = append(results, a.Metadata)
				}
			}
			continue
		}

		found := false
		for _, a := range all {
			if a.Metadata.Name == q.Name && hasType(q.Types, a.Metadata.Type) {
				results = append(results, a.Metadata)
				found = true
				break
			}
		}
		if !found {
			fail(c, http.StatusNotFound, "No such artifact")
			return
		}
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) artifactsByName(c *gin.Context) {
	name := c.Param("name")
	results := make([]registry.ArtifactMetadata, 0)
	for _, a := range s.store.listArtifacts() {
		if a.Metadata.Name == name {
			results = append(results, a.Metadata)
		}
	}
	if len(results) == 0 {
		fail(c, http.StatusNotFound, "No such artifact")
		return
	}
	c.JSON(http.StatusOK, results)
}

// artifactsByRegex treats a plain, optionally anchored name as an exact lookup and anything
// else as a regular expression searched within names.
func (s *Server) artifactsByRegex(c *gin.Context) {
	var body struct {
		Regex string `json:"regex" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "regex is required")
		return
	}

	var match func(string) bool
	stripped := strings.TrimSuffix(strings.TrimPrefix(body.Regex, "^"), "$")
	if literalName.MatchString(stripped) {
		match = func(name string) bool { return name == stripped }
	} else {
		re, err := compileSearch(body.Regex)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid regular expression")
			return
		}
		match = re.MatchString
	}

	results := make([]registry.ArtifactMetadata, 0)
	for _, a := range s.store.listArtifacts() {
		if match(a.Metadata.Name) {
			results = append(results, a.Metadata)
		}
	}
	if len(results) == 0 {
		fail(c, http.StatusNotFound, "No artifact found under this regex")
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) rateModel(c *gin.Context) {
	a, ok := s.model(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ratingDocument(a.Metadata.Name, a.Data.URL, s.opts.Scorer(a.Data.URL)))
}

// relationship names the edge from a parent of type t.
func relationship(t string) string {
	switch t {
	case registry.TypeModel:
		return "base_model"
	case registry.TypeDataset:
		return "training_dataset"
	}
	return "source_code"
}

// ancestry walks parents breadth first from root. Parents that resolve to no artifact are
// returned as dangling references.
func (s *Server) ancestry(root artifactRecord) (nodes []artifactRecord, edges []registry.LineageEdge) {
	seen := map[string]bool{root.Metadata.ID: true}
	queue := []artifactRecord{root}
	nodes = append(nodes, root)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range cur.Parents {
			parent, ok := s.store.resolve(ref)
			if !ok {
				edges = append(edges, registry.LineageEdge{From: ref, To: cur.Metadata.ID, Relationship: "unknown"})
				continue
			}
			edges = append(edges, registry.LineageEdge{
				From:         parent.Metadata.ID,
				To:           cur.Metadata.ID,
				Relationship: relationship(parent.Metadata.Type),
			})
			if !seen[parent.Metadata.ID] {
				seen[parent.Metadata.ID] = true
				nodes = append(nodes, parent)
				queue = append(queue, parent)
			}
		}
	}
	return nodes, edges
}

func (s *Server) lineage(c *gin.Context) {
	a, ok := s.model(c)
	if !ok {
		return
	}
	records, edges := s.ancestry(a)

	nodes := make([]gin.H, 0, len(records))
	for _, r := range records {
		nodes = append(nodes, gin.H{
			"artifact_id": r.Metadata.ID,
			"name":        r.Metadata.Name,
			"source":      "config_json",
		})
	}
	wire := make([]gin.H, 0, len(edges))
	for _, e := range edges {
		if e.Relationship == "unknown" {
			s.warn("lineage references unknown artifact", "id", a.Metadata.ID, "ref", e.From)
		}
		wire = append(wire, gin.H{
			"from_node_artifact_id": e.From,
			"to_node_artifact_id":   e.To,
			"relationship":          e.Relationship,
		})
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "edges": wire})
}

// sizeMB is a stand-in artifact size derived from the length of its URL.
func sizeMB(a artifactRecord) float64 {
	return round2(float64(max(len(a.Data.URL), 1)) / 10)
}

// cost reports the artifact alone, or with dependency=true every artifact in its lineage
// with the root's total covering all of them.
func (s *Server) cost(c *gin.Context) {
	a, ok := s.typedArtifact(c)
	if !ok {
		return
	}
	dependency, _ := strconv.ParseBool(c.DefaultQuery("dependency", "false"))
	own := sizeMB(a)
	if !dependency {
		c.JSON(http.StatusOK, registry.CostReport{a.Metadata.ID: {TotalCost: own}})
		return
	}

	records, _ := s.ancestry(a)
	report := make(registry.CostReport, len(records))
	total := 0.0
	for _, r := range records {
		size := sizeMB(r)
		total += size
		if r.Metadata.ID != a.Metadata.ID {
			report[r.Metadata.ID] = registry.CostEntry{TotalCost: size, StandaloneCost: ptr(size)}
		}
	}
	report[a.Metadata.ID] = registry.CostEntry{TotalCost: round2(total), StandaloneCost: ptr(own)}
	c.JSON(http.StatusOK, report)
}

func (s *Server) licenseCheck(c *gin.Context) {
	a, ok := s.model(c)
	if !ok {
		return
	}
	var body struct {
		GitHubURL string `json:"github_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		invalid(c, "github_url is required")
		return
	}
	if _, _, err := gh.ParseRepository(body.GitHubURL); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var repoLicense string
	if s.opts.Licenses != nil {
		rl, err := s.opts.Licenses.License(c.Request.Context(), body.GitHubURL)
		switch {
		case errors.Is(err, gh.ErrRepoNotFound):
			fail(c, http.StatusNotFound, "GitHub repository not found")
			return
		case errors.Is(err, gh.ErrLicenseNotFound):
		case err != nil:
			s.warn("repository license lookup failed", "github_url", body.GitHubURL, "error", err)
			fail(c, http.StatusBadGateway, "GitHub license lookup failed")
			return
		default:
			repoLicense = rl.Key
		}
	}
	c.JSON(http.StatusOK, gh.CheckCompatibility(a.License, repoLicense))
}
