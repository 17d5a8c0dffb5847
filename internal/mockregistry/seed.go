package mockregistry

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// User is an account the registry accepts at login.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SeedPackage is a package present at startup.
type SeedPackage struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Version   string            `yaml:"version"`
	ModelURL  string            `yaml:"model_url"`
	CardText  string            `yaml:"card_text"`
	Meta      map[string]string `yaml:"meta"`
	Parents   []string          `yaml:"parents"`
	SizeBytes int64             `yaml:"size_bytes"`
	Sensitive bool              `yaml:"sensitive"`
}

// SeedArtifact is an artifact present at startup. Parents refer to other artifacts by
// id or name and become lineage edges.
type SeedArtifact struct {
	Type    string   `yaml:"type"`
	URL     string   `yaml:"url"`
	Name    string   `yaml:"name"`
	License string   `yaml:"license"`
	Parents []string `yaml:"parents"`
}

// Seed is the initial content of the registry.
type Seed struct {
	Users     []User         `yaml:"users"`
	Packages  []SeedPackage  `yaml:"packages"`
	Artifacts []SeedArtifact `yaml:"artifacts"`
}

// DefaultSeed has one account per role and no content.
func DefaultSeed() Seed {
	return Seed{
		Users: []User{
			{Username: "admin", Password: "admin", Role: registry.RoleAdmin},
			{Username: "contributor", Password: "contributor", Role: registry.RoleContributor},
			{Username: "viewer", Password: "viewer", Role: registry.RoleViewer},
		},
	}
}

// LoadSeed reads a YAML seed file. Users default to DefaultSeed's when the file has none.
func LoadSeed(path string) (Seed, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to expand seed path %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file %s: %w", expanded, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file %s: %w", expanded, err)
	}
	if len(seed.Users) == 0 {
		seed.Users = DefaultSeed().Users
	}
	return seed, nil
}

func (s *Server) load(seed Seed) error {
	for _, u := range seed.Users {
		if u.Username == "" || registry.RoleRank(u.Role) == 0 {
			return fmt.Errorf("user %q: username and a known role are required", u.Username)
		}
		s.store.putUser(u)
	}

	for _, p := range seed.Packages {
		if p.Name == "" || p.Version == "" {
			return fmt.Errorf("package %q: name and version are required", p.ID)
		}
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		source := p.ModelURL
		if source == "" {
			source = p.Name + "@" + p.Version
		}
		rec := &pkgRecord{
			PackageDetail: registry.PackageDetail{
				PackageSummary: registry.PackageSummary{
					ID:      id,
					Name:    p.Name,
					Version: p.Version,
					Scores:  s.opts.Scorer(source),
				},
				Parents: p.Parents,
			},
			Sensitive: p.Sensitive,
			Source:    source,
		}
		if rec.Parents == nil {
			rec.Parents = []string{}
		}
		if p.CardText != "" {
			card := p.CardText
			rec.CardText = &card
		}
		if len(p.Meta) > 0 {
			rec.Meta = make(map[string]any, len(p.Meta))
			for k, v := range p.Meta {
				rec.Meta[k] = v
			}
		}
		if p.SizeBytes > 0 {
			size := p.SizeBytes
			rec.SizeBytes = &size
		}
		s.store.putPackage(rec)
	}

	for _, a := range seed.Artifacts {
		if _, err := s.addArtifact(a.Type, a.URL, a.Name, a.License, a.Parents); err != nil {
			return fmt.Errorf("artifact %s %s: %w", a.Type, a.URL, err)
		}
	}
	return nil
}
