package guardrail

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policies/default.yaml
var defaultPolicyYAML []byte

// PolicyFile is the on-disk form of a guardrail policy.
type PolicyFile struct {
	PII      []PIIPolicyConfig `yaml:"pii"`
	Keywords KeywordConfig     `yaml:"keywords"`
}

// PIIPolicyConfig is one PII pattern entry.
type PIIPolicyConfig struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Regex string `yaml:"regex"`
	// Enabled defaults to true; set false in an override file to drop a default.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// KeywordConfig holds the case-insensitive substring lists.
type KeywordConfig struct {
	Jailbreak []string `yaml:"jailbreak"`
	Threat    []string `yaml:"threat"`
}

// PIIPolicy is a compiled PII pattern.
type PIIPolicy struct {
	Name        string
	Label       string
	Pattern     *regexp.Regexp
	Placeholder string
}

// Policy is the compiled, immutable policy table.
type Policy struct {
	PII               []PIIPolicy
	JailbreakKeywords []string
	ThreatKeywords    []string
}

// DefaultPolicy compiles the embedded default policy.
func DefaultPolicy() (*Policy, error) {
	pf, err := ParsePolicyFile(defaultPolicyYAML)
	if err != nil {
		return nil, fmt.Errorf("parse default policy: %w", err)
	}
	return CompilePolicy(pf)
}

// LoadPolicy returns the default policy merged with the file at path.
// An empty path yields the defaults.
func LoadPolicy(path string) (*Policy, error) {
	base, err := ParsePolicyFile(defaultPolicyYAML)
	if err != nil {
		return nil, fmt.Errorf("parse default policy: %w", err)
	}
	if path == "" {
		return CompilePolicy(base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	override, err := ParsePolicyFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return CompilePolicy(MergePolicyFiles(base, override))
}

// ParsePolicyFile decodes YAML policy data.
func ParsePolicyFile(data []byte) (PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return PolicyFile{}, err
	}
	return pf, nil
}

// MergePolicyFiles overlays override onto base. PII entries with the same
// name replace the base entry in place; new names are appended. Non-empty
// keyword lists replace the base lists.
func MergePolicyFiles(base, override PolicyFile) PolicyFile {
	merged := PolicyFile{
		PII:      make([]PIIPolicyConfig, 0, len(base.PII)+len(override.PII)),
		Keywords: base.Keywords,
	}
	index := make(map[string]int, len(base.PII))
	for _, p := range base.PII {
		index[p.Name] = len(merged.PII)
		merged.PII = append(merged.PII, p)
	}
	for _, p := range override.PII {
		if i, ok := index[p.Name]; ok {
			merged.PII[i] = p
			continue
		}
		index[p.Name] = len(merged.PII)
		merged.PII = append(merged.PII, p)
	}
	if len(override.Keywords.Jailbreak) > 0 {
		merged.Keywords.Jailbreak = override.Keywords.Jailbreak
	}
	if len(override.Keywords.Threat) > 0 {
		merged.Keywords.Threat = override.Keywords.Threat
	}
	return merged
}

// CompilePolicy validates and compiles a policy file.
func CompilePolicy(pf PolicyFile) (*Policy, error) {
	p := &Policy{
		JailbreakKeywords: normalizeKeywords(pf.Keywords.Jailbreak),
		ThreatKeywords:    normalizeKeywords(pf.Keywords.Threat),
	}
	for _, c := range pf.PII {
		if c.Enabled != nil && !*c.Enabled {
			continue
		}
		if c.Name == "" || c.Regex == "" {
			return nil, fmt.Errorf("pii policy %q: name and regex are required", c.Name)
		}
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return nil, fmt.Errorf("pii policy %q: %w", c.Name, err)
		}
		label := c.Label
		if label == "" {
			label = strings.ToUpper(c.Name)
		}
		p.PII = append(p.PII, PIIPolicy{
			Name:        c.Name,
			Label:       label,
			Pattern:     re,
			Placeholder: "[REDACTED_" + label + "]",
		})
	}
	return p, nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
