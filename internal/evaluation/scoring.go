// Package evaluation scores recent chat traffic: rule-based batch metrics
// plus versioned LLM-judge scoring functions.
package evaluation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	logx "github.com/retention-intel/server/pkg/logger"
)

const specFile = "spec.json"

//go:embed scoring_functions
var embeddedScoring embed.FS

// ErrScoringNotFound is returned when no scoring function exists for a name and version.
var ErrScoringNotFound = errors.New("scoring function not found")

// ScoringFunction is a versioned LLM-judge definition.
type ScoringFunction struct {
	ID             string         `json:"id"`
	Version        string         `json:"version"`
	Description    string         `json:"description"`
	PromptTemplate string         `json:"prompt_template"`
	Schema         map[string]any `json:"schema"`
	Model          string         `json:"model"`

	compiled *gojsonschema.Schema
}

// Ref names a scoring function on disk.
type Ref struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Validate checks a parsed judge output against the output schema and
// returns the violations. A function without a schema accepts anything.
func (s ScoringFunction) Validate(doc map[string]any) []string {
	if s.compiled == nil {
		return nil
	}
	res, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []string{err.Error()}
	}
	if res.Valid() {
		return nil
	}
	out := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out
}

// Loader resolves scoring functions from <root>/<name>/<version>/spec.json.
type Loader struct {
	fsys fs.FS
}

// NewLoader reads from dir when it exists, otherwise from the scoring
// functions compiled into the binary.
func NewLoader(dir string) *Loader {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return NewLoaderFS(os.DirFS(dir))
		}
		logx.Warn().Str("dir", dir).Msg("scoring dir not found, using built-in scoring functions")
	}
	sub, _ := fs.Sub(embeddedScoring, "scoring_functions")
	return NewLoaderFS(sub)
}

// NewLoaderFS reads from an arbitrary file system.
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// Load parses and compiles one scoring function.
func (l *Loader) Load(name, version string) (ScoringFunction, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(name, version, specFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ScoringFunction{}, fmt.Errorf("%w: %s/%s", ErrScoringNotFound, name, version)
		}
		return ScoringFunction{}, fmt.Errorf("read scoring function %s/%s: %w", name, version, err)
	}

	var sf ScoringFunction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&sf); err != nil {
		return ScoringFunction{}, fmt.Errorf("parse scoring function %s/%s: %w", name, version, err)
	}
	if sf.ID == "" || sf.Version == "" || sf.PromptTemplate == "" {
		return ScoringFunction{}, fmt.Errorf("scoring function %s/%s: id, version and prompt_template are required", name, version)
	}
	if len(sf.Schema) > 0 {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(sf.Schema))
		if err != nil {
			return ScoringFunction{}, fmt.Errorf("compile schema for %s/%s: %w", name, version, err)
		}
		sf.compiled = compiled
	}
	return sf, nil
}

// LoadAll loads each ref in order.
func (l *Loader) LoadAll(refs ...Ref) ([]ScoringFunction, error) {
	out := make([]ScoringFunction, 0, len(refs))
	for _, r := range refs {
		sf, err := l.Load(r.Name, r.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, nil
}

// List returns every <name>/<version> directory holding a scoring function, sorted.
func (l *Loader) List() ([]Ref, error) {
	names, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Ref{}, nil
		}
		return nil, err
	}

	refs := []Ref{}
	for _, n := range names {
		if !n.IsDir() {
			continue
		}
		versions, err := fs.ReadDir(l.fsys, n.Name())
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			if _, err := fs.Stat(l.fsys, path.Join(n.Name(), v.Name(), specFile)); err == nil {
				refs = append(refs, Ref{Name: n.Name(), Version: v.Name()})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Version < refs[j].Version
	})
	return refs, nil
}
