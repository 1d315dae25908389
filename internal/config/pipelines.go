package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"IntelDigest/internal/domain"
)

const (
	defaultFetchHours = 24
	defaultTopK       = 10
	defaultAudience   = "general"
	defaultFallback   = "Relevant update."
)

// PersonaConfig declares a custom persona alongside the built-in ones.
type PersonaConfig struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	ScoreField  string        `yaml:"scoreField"`
	Fields      []FieldConfig `yaml:"fields"`
}

// FieldConfig is one schema field of a custom persona.
type FieldConfig struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Values      []string `yaml:"values"`
	Description string   `yaml:"description"`
	Optional    bool     `yaml:"optional"`
}

// PipelineConfig describes one persona run.
type PipelineConfig struct {
	Name                  string         `yaml:"name"`
	Enabled               *bool          `yaml:"enabled"`
	Persona               string         `yaml:"persona"`
	FetchHours            int            `yaml:"fetchHours"`
	Keywords              []string       `yaml:"keywords"`
	MinEngagement         *float64       `yaml:"minEngagement"`
	MinLength             int            `yaml:"minLength"`
	TopK                  int            `yaml:"topK"`
	ScoreField            string         `yaml:"scoreField"`
	WhyItMattersField     FieldList      `yaml:"whyItMattersField"`
	WhyItMattersSeparator string         `yaml:"whyItMattersSeparator"`
	WhyItMattersFallback  string         `yaml:"whyItMattersFallback"`
	DefaultAudience       string         `yaml:"defaultAudience"`
	Sources               []SourceConfig `yaml:"sources"`
}

// IsEnabled treats a missing flag as enabled.
func (p PipelineConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// SourceConfig describes a single source with its type-specific options.
type SourceConfig struct {
	Type      string            `yaml:"type"`
	Name      string            `yaml:"name"`
	Enabled   *bool             `yaml:"enabled"`
	Subreddit string            `yaml:"subreddit"`
	Feeds     []string          `yaml:"feeds"`
	Options   map[string]string `yaml:"options"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// FieldList holds either a single field name or a list of names.
type FieldList struct {
	Names []string
	List  bool
}

// UnmarshalYAML accepts `field` as well as `[a, b]`.
func (f *FieldList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		f.Names, f.List = []string{name}, false
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		f.Names, f.List = names, true
		return nil
	default:
		return fmt.Errorf("line %d: whyItMattersField must be a string or a list of strings", node.Line)
	}
}

// Selector resolves the field list into its domain variant.
func (f FieldList) Selector(separator string) domain.WhyItMattersSelector {
	if f.List {
		return domain.ConcatFields(f.Names, separator)
	}
	if len(f.Names) == 0 {
		return domain.SingleField("why_it_matters")
	}
	return domain.SingleField(f.Names[0])
}

// PersonaCatalog returns built-in personas merged with the configured ones.
func (c Config) PersonaCatalog() (map[string]domain.Persona, error) {
	catalog := domain.BuiltinPersonas()
	for _, pc := range c.Personas {
		persona, err := pc.toDomain()
		if err != nil {
			return nil, err
		}
		catalog[persona.Name] = persona
	}
	return catalog, nil
}

func (pc PersonaConfig) toDomain() (domain.Persona, error) {
	if strings.TrimSpace(pc.Name) == "" {
		return domain.Persona{}, errors.New("persona name is required")
	}
	if pc.ScoreField == "" {
		return domain.Persona{}, fmt.Errorf("persona %s: scoreField is required", pc.Name)
	}
	persona := domain.Persona{
		Name:        pc.Name,
		Description: pc.Description,
		ScoreField:  pc.ScoreField,
	}
	for _, fc := range pc.Fields {
		kind := domain.FieldKind(strings.ToLower(fc.Type))
		switch kind {
		case domain.KindString, domain.KindFloat01:
		case domain.KindEnum:
			if len(fc.Values) == 0 {
				return domain.Persona{}, fmt.Errorf("persona %s: enum field %s has no values", pc.Name, fc.Name)
			}
		case "":
			kind = domain.KindString
		default:
			return domain.Persona{}, fmt.Errorf("persona %s: field %s has unknown type %q", pc.Name, fc.Name, fc.Type)
		}
		persona.Fields = append(persona.Fields, domain.FieldSpec{
			Name:        fc.Name,
			Kind:        kind,
			Values:      fc.Values,
			Description: fc.Description,
			Optional:    fc.Optional,
		})
	}
	return persona, nil
}

// Validate rejects settings the pipelines cannot run with.
func (c Config) Validate() error {
	var problems []error

	if c.Dedup.Scope != "global" && c.Dedup.Scope != "persona" {
		problems = append(problems, fmt.Errorf("dedup.scope must be global or persona, got %q", c.Dedup.Scope))
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		problems = append(problems, fmt.Errorf("dedup.similarityThreshold must be in (0,1], got %v", c.Dedup.SimilarityThreshold))
	}
	if c.Index.Embedder != "hash" && c.Index.Embedder != "http" {
		problems = append(problems, fmt.Errorf("index.embedder must be hash or http, got %q", c.Index.Embedder))
	}
	if h := c.Scheduler.RunHour(); h < 0 || h > 23 {
		problems = append(problems, fmt.Errorf("scheduler.hour must be within 0..23, got %d", h))
	}

	catalog, err := c.PersonaCatalog()
	if err != nil {
		problems = append(problems, err)
	}

	seen := make(map[string]struct{}, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if p.Name == "" {
			problems = append(problems, errors.New("pipeline name is required"))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			problems = append(problems, fmt.Errorf("pipeline %s declared twice", p.Name))
		}
		seen[p.Name] = struct{}{}

		if p.TopK < 0 {
			problems = append(problems, fmt.Errorf("pipeline %s: topK must be at least 1, got %d", p.Name, p.TopK))
		}
		if catalog != nil {
			if _, ok := catalog[p.Persona]; !ok {
				problems = append(problems, fmt.Errorf("pipeline %s: unknown persona %q", p.Name, p.Persona))
			}
		}
		for _, s := range p.Sources {
			if !slices.Contains(domain.SourceTypes(), strings.ToLower(s.Type)) {
				problems = append(problems, fmt.Errorf("pipeline %s: unknown source type %q", p.Name, s.Type))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(problems...))
}

// PipelineSpecs resolves the enabled pipelines into their runtime specs.
func (c Config) PipelineSpecs() ([]domain.PipelineSpec, error) {
	catalog, err := c.PersonaCatalog()
	if err != nil {
		return nil, err
	}

	specs := make([]domain.PipelineSpec, 0, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if !p.IsEnabled() {
			continue
		}
		persona, ok := catalog[p.Persona]
		if !ok {
			return nil, fmt.Errorf("%w: pipeline %s: unknown persona %q", domain.ErrValidation, p.Name, p.Persona)
		}
		specs = append(specs, p.toSpec(persona))
	}
	return specs, nil
}

func (p PipelineConfig) toSpec(persona domain.Persona) domain.PipelineSpec {
	spec := domain.PipelineSpec{
		Name:                 p.Name,
		Persona:              persona,
		FetchWindowHours:     p.FetchHours,
		Keywords:             append([]string(nil), p.Keywords...),
		MinEngagement:        p.MinEngagement,
		MinLength:            p.MinLength,
		TopK:                 p.TopK,
		ScoreField:           p.ScoreField,
		WhyItMatters:         p.WhyItMattersField.Selector(p.WhyItMattersSeparator),
		WhyItMattersFallback: p.WhyItMattersFallback,
		DefaultAudience:      p.DefaultAudience,
	}
	if spec.FetchWindowHours <= 0 {
		spec.FetchWindowHours = defaultFetchHours
	}
	if spec.TopK <= 0 {
		spec.TopK = defaultTopK
	}
	if spec.ScoreField == "" {
		spec.ScoreField = persona.ScoreField
	}
	if spec.WhyItMattersFallback == "" {
		spec.WhyItMattersFallback = defaultFallback
	}
	if spec.DefaultAudience == "" {
		spec.DefaultAudience = defaultAudience
	}
	for _, s := range p.Sources {
		if !s.IsEnabled() {
			continue
		}
		spec.Sources = append(spec.Sources, domain.SourceSpec{
			Type:      strings.ToLower(s.Type),
			Name:      s.Name,
			Subreddit: s.Subreddit,
			Feeds:     append([]string(nil), s.Feeds...),
			Options:   s.Options,
		})
	}
	return spec
}
