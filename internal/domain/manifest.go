package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/teamcutter/huber/internal/template"
)

type packageDoc struct {
	Name        string    `yaml:"name" json:"name"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Source      sourceDoc `yaml:"source" json:"source"`
	Targets     []Target  `yaml:"targets" json:"targets"`
	Detail      *Detail   `yaml:"detail,omitempty" json:"detail,omitempty"`
}

func (p *Package) UnmarshalYAML(node *yaml.Node) error {
	var doc packageDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}

	*p = Package{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Source:      doc.Source.Source,
		Targets:     doc.Targets,
		Detail:      doc.Detail,
	}
	return nil
}

func (p Package) MarshalYAML() (any, error) {
	return p.doc(), nil
}

func (p Package) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.doc())
}

func (p Package) doc() packageDoc {
	return packageDoc{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Source:      sourceDoc{Source: p.Source},
		Targets:     p.Targets,
		Detail:      p.Detail,
	}
}

// DecodeManifests reads every YAML document in data as a package
// manifest and validates it.
func DecodeManifests(data []byte) ([]Package, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var pkgs []Package
	for {
		var pkg Package
		err := dec.Decode(&pkg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ManifestError{Err: err}
		}
		if pkg.Name == "" && pkg.Source == nil && len(pkg.Targets) == 0 {
			continue
		}
		if err := pkg.Validate(); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}

	return pkgs, nil
}

func DecodeIndex(data []byte) ([]PackageIndex, error) {
	var idx []PackageIndex
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, &ManifestError{Name: "index", Err: err}
	}
	for i, entry := range idx {
		if entry.Name == "" {
			return nil, &ManifestError{Name: "index", Err: fmt.Errorf("entry %d has no name", i)}
		}
	}
	return idx, nil
}

// Validate rejects manifests that could never be installed, so that a
// malformed template fails when the manifest loads rather than mid-install.
func (p *Package) Validate() error {
	fail := func(format string, args ...any) error {
		return &ManifestError{Name: p.Name, Err: fmt.Errorf(format, args...)}
	}

	if p.Name == "" {
		return fail("missing name")
	}
	if p.Source == nil {
		return fail("missing source")
	}

	seen := make(map[Platform]bool, len(p.Targets))
	for _, t := range p.Targets {
		if !t.Platform.Valid() {
			return fail("unknown platform tag %q", t.Platform)
		}
		if seen[t.Platform] {
			return fail("duplicate target %s", t.Platform)
		}
		seen[t.Platform] = true

		m := t.Management
		if len(m.ArtifactTemplates) == 0 {
			return fail("%s: no artifact templates", t.Platform)
		}

		templates := make([]string, 0, len(m.ArtifactTemplates)+2)
		templates = append(templates, m.ArtifactTemplates...)
		templates = append(templates, m.Checksum, m.Signature)
		templates = append(templates, m.InstallCommands...)
		templates = append(templates, m.UninstallCommands...)
		templates = append(templates, m.UpgradeCommands...)

		for _, tmpl := range templates {
			if err := template.Validate(tmpl); err != nil {
				return fail("%s: %w", t.Platform, err)
			}
		}
	}

	return nil
}
