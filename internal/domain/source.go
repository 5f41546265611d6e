package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceGithub SourceKind = "github"
	SourceHelm   SourceKind = "helm"
)

// Source is a closed set: GithubSource and HelmSource are the only
// implementations.
type Source interface {
	Kind() SourceKind
	URL() string
	OwnerName() string
	isSource()
}

type GithubSource struct {
	Owner string `yaml:"owner" json:"owner"`
	Repo  string `yaml:"repo" json:"repo"`
}

func (GithubSource) isSource()           {}
func (GithubSource) Kind() SourceKind    { return SourceGithub }
func (s GithubSource) OwnerName() string { return s.Owner }
func (s GithubSource) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s", s.Owner, s.Repo)
}

type HelmSource struct {
	Registry string `yaml:"registry" json:"registry"`
	Repo     string `yaml:"repo" json:"repo"`
}

func (HelmSource) isSource()           {}
func (HelmSource) Kind() SourceKind    { return SourceHelm }
func (s HelmSource) OwnerName() string { return s.Registry }

// URL joins the registry and repo so helm packages get a display URL
// like github ones do.
func (s HelmSource) URL() string {
	registry := strings.TrimSuffix(s.Registry, "/")
	if !strings.Contains(registry, "://") {
		registry = "https://" + registry
	}
	return registry + "/" + strings.TrimPrefix(s.Repo, "/")
}

type sourceDoc struct {
	Source Source
}

func (d *sourceDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("source must have exactly one of: github, helm")
	}

	key, value := node.Content[0].Value, node.Content[1]
	switch SourceKind(key) {
	case SourceGithub:
		var gh GithubSource
		if err := value.Decode(&gh); err != nil {
			return fmt.Errorf("github source: %w", err)
		}
		if gh.Owner == "" || gh.Repo == "" {
			return fmt.Errorf("github source requires owner and repo")
		}
		d.Source = gh
	case SourceHelm:
		var h HelmSource
		if err := value.Decode(&h); err != nil {
			return fmt.Errorf("helm source: %w", err)
		}
		if h.Registry == "" || h.Repo == "" {
			return fmt.Errorf("helm source requires registry and repo")
		}
		d.Source = h
	default:
		return fmt.Errorf("unknown source kind %q", key)
	}
	return nil
}

func (d sourceDoc) MarshalYAML() (any, error) {
	return sourceMap(d.Source)
}

func (d sourceDoc) MarshalJSON() ([]byte, error) {
	m, err := sourceMap(d.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func sourceMap(s Source) (map[string]any, error) {
	switch v := s.(type) {
	case GithubSource:
		return map[string]any{string(SourceGithub): v}, nil
	case HelmSource:
		return map[string]any{string(SourceHelm): v}, nil
	case nil:
		return nil, fmt.Errorf("package has no source")
	default:
		panic(fmt.Sprintf("unhandled source type %T", s))
	}
}
