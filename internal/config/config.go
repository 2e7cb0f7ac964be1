// Package config loads the import manifest describing, per organism, where
// the annotation, metadata, expression, edge, motif, and gene list files
// live on disk. Paths in the manifest resolve relative to the manifest file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OrganismSources names the input files for one organism. Annotation is the
// only required entry; every other source is optional.
type OrganismSources struct {
	Annotation      string   `yaml:"annotation"`
	Metadata        string   `yaml:"metadata"`
	Data            []string `yaml:"data"`
	AdditionalEdges []string `yaml:"additional_edges"`
	Motifs          string   `yaml:"motifs"`
	GeneLists       []string `yaml:"gene_lists"`
	Networks        []string `yaml:"networks"`
}

// Manifest is the parsed import manifest.
type Manifest struct {
	Organisms map[string]OrganismSources `yaml:"organisms"`

	// NamedQueries maps a shorthand name to a full query expression that
	// may be invoked in place of a literal query string.
	NamedQueries map[string]string `yaml:"named_queries"`
}

// Load reads and validates the manifest at path. All relative file paths are
// rewritten to be absolute with respect to the manifest's directory.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Organisms) == 0 {
		return nil, fmt.Errorf("manifest %s: no organisms declared", path)
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	for organism, src := range m.Organisms {
		if strings.TrimSpace(organism) == "" {
			return nil, fmt.Errorf("manifest %s: empty organism name", path)
		}
		if src.Annotation == "" {
			return nil, fmt.Errorf("manifest %s: organism %q: annotation file required", path, organism)
		}
		if len(src.Data) > 0 && src.Metadata == "" {
			return nil, fmt.Errorf("manifest %s: organism %q: data files declared without metadata", path, organism)
		}
		src.Annotation = resolve(base, src.Annotation)
		src.Metadata = resolve(base, src.Metadata)
		src.Motifs = resolve(base, src.Motifs)
		src.Data = resolveAll(base, src.Data)
		src.AdditionalEdges = resolveAll(base, src.AdditionalEdges)
		src.GeneLists = resolveAll(base, src.GeneLists)
		src.Networks = resolveAll(base, src.Networks)
		m.Organisms[organism] = src
	}
	return &m, nil
}

// OrganismNames returns the declared organisms in sorted order.
func (m *Manifest) OrganismNames() []string {
	names := make([]string, 0, len(m.Organisms))
	for name := range m.Organisms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query resolves a named query, falling back to the input when no
// shorthand with that name exists.
func (m *Manifest) Query(nameOrExpr string) string {
	if expr, ok := m.NamedQueries[nameOrExpr]; ok {
		return expr
	}
	return nameOrExpr
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func resolveAll(base string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolve(base, p)
	}
	return out
}
