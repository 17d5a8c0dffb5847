package mockregistry

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/version"
)

// Sentinel errors for the in-memory store
var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// pkgRecord is a stored package plus the fields the API never returns.
type pkgRecord struct {
	registry.PackageDetail
	Sensitive bool
	// Source is the key the scorer rates, usually the model URL.
	Source string
}

// artifactRecord is a stored artifact plus its license and lineage parents.
type artifactRecord struct {
	registry.Artifact
	License string
	// Parents names the artifacts this one was derived from, by id or by name.
	Parents []string
}

type store struct {
	mu        sync.RWMutex
	users     map[string]User
	packages  map[string]*pkgRecord
	artifacts map[string]*artifactRecord
}

func newStore() *store {
	return &store{
		users:     make(map[string]User),
		packages:  make(map[string]*pkgRecord),
		artifacts: make(map[string]*artifactRecord),
	}
}

// artifactID derives the stable id of an artifact from its type and source URL.
func artifactID(artifactType, url string) string {
	sum := md5.Sum([]byte(artifactType + ":" + url))
	return hex.EncodeToString(sum[:])[:10]
}

// nameFromURL is the last path segment of url, or url itself.
func nameFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	if trimmed == "" {
		return url
	}
	return trimmed
}

func (s *store) putUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

func (s *store) user(name string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	return u, ok
}

func (s *store) putPackage(p *pkgRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[p.ID] = p
}

func (s *store) pkg(id string) (pkgRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return pkgRecord{}, false
	}
	return *p, true
}

func (s *store) deletePackage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[id]; !ok {
		return false
	}
	delete(s.packages, id)
	return true
}

func (s *store) setScores(id string, scores registry.Scores) (pkgRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return pkgRecord{}, false
	}
	p.Scores = scores
	return *p, true
}

// listPackages returns packages ordered by name, then by semantic version.
func (s *store) listPackages() []pkgRecord {
	s.mu.RLock()
	out := make([]pkgRecord, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Version != out[j].Version {
			return version.Less(out[i].Version, out[j].Version)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// addArtifact stores a; a second artifact with the same type and URL is ErrExists.
func (s *store) addArtifact(a *artifactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[a.Metadata.ID]; ok {
		return ErrExists
	}
	s.artifacts[a.Metadata.ID] = a
	return nil
}

func (s *store) artifact(id string) (artifactRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return artifactRecord{}, false
	}
	return *a, true
}

func (s *store) deleteArtifact(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[id]; !ok {
		return false
	}
	delete(s.artifacts, id)
	return true
}

// listArtifacts returns artifacts ordered by id.
func (s *store) listArtifacts() []artifactRecord {
	s.mu.RLock()
	out := make([]artifactRecord, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, *a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ID < out[j].Metadata.ID })
	return out
}

// resolve finds an artifact by id, falling back to the lowest id with that name.
func (s *store) resolve(ref string) (artifactRecord, bool) {
	if a, ok := s.artifact(ref); ok {
		return a, true
	}
	for _, a := range s.listArtifacts() {
		if a.Metadata.Name == ref {
			return a, true
		}
	}
	return artifactRecord{}, false
}
