package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// FieldKind enumerates the value shapes a persona schema understands.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindFloat01 FieldKind = "float01"
	KindEnum    FieldKind = "enum"
)

// FieldSpec describes one structured field the model must return.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Values      []string
	Description string
	Optional    bool
}

// Persona is a named evaluation profile: a field schema plus its primary score field.
type Persona struct {
	Name        string
	Description string
	ScoreField  string
	Fields      []FieldSpec
}

// Validate checks model-returned fields against the persona schema.
// The score field is always required and must be a float in [0,1].
func (p Persona) Validate(fields map[string]any) error {
	var problems []error

	if !slices.ContainsFunc(p.Fields, func(f FieldSpec) bool { return f.Name == p.ScoreField }) {
		if err := checkField(FieldSpec{Name: p.ScoreField, Kind: KindFloat01}, fields); err != nil {
			problems = append(problems, err)
		}
	}

	for _, spec := range p.Fields {
		if spec.Name == p.ScoreField {
			spec.Kind = KindFloat01
			spec.Optional = false
		}
		if err := checkField(spec, fields); err != nil {
			problems = append(problems, err)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: persona %s: %w", ErrValidation, p.Name, errors.Join(problems...))
}

func checkField(spec FieldSpec, fields map[string]any) error {
	raw, ok := fields[spec.Name]
	if !ok || raw == nil {
		if spec.Optional {
			return nil
		}
		return fmt.Errorf("field %q is required", spec.Name)
	}

	switch spec.Kind {
	case KindFloat01:
		v, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("field %q must be a number, got %T", spec.Name, raw)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("field %q must be within [0,1], got %v", spec.Name, v)
		}
	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string, got %T", spec.Name, raw)
		}
		if !slices.Contains(spec.Values, s) {
			return fmt.Errorf("field %q must be one of %s, got %q", spec.Name, strings.Join(spec.Values, "|"), s)
		}
	default:
		if _, ok := raw.(string); !ok {
			return fmt.Errorf("field %q must be a string, got %T", spec.Name, raw)
		}
	}
	return nil
}

// GenAINews evaluates technical GenAI and infrastructure news.
var GenAINews = Persona{
	Name:        "GENAI_NEWS",
	Description: "Technical GenAI and infrastructure news",
	ScoreField:  "relevance_score",
	Fields: []FieldSpec{
		{Name: "relevance_score", Kind: KindFloat01, Description: "how relevant the item is for practitioners"},
		{Name: "topic", Kind: KindString, Description: "short topic label"},
		{Name: "why_it_matters", Kind: KindString, Description: "one or two sentences on the impact"},
		{Name: "target_audience", Kind: KindEnum, Values: []string{"developer", "architect", "manager"}},
	},
}

// ProductIdeas scans for product and startup opportunities.
var ProductIdeas = Persona{
	Name:        "PRODUCT_IDEAS",
	Description: "Product and startup opportunity scanner",
	ScoreField:  "reusability_score",
	Fields: []FieldSpec{
		{Name: "idea_type", Kind: KindString},
		{Name: "problem_statement", Kind: KindString},
		{Name: "solution_summary", Kind: KindString},
		{Name: "maturity_level", Kind: KindEnum, Values: []string{"idea", "mvp", "early_traction", "scaling"}},
		{Name: "reusability_score", Kind: KindFloat01, Description: "how reusable the idea is for a new product"},
	},
}

// BuiltinPersonas returns the personas shipped with the binary keyed by name.
func BuiltinPersonas() map[string]Persona {
	return map[string]Persona{
		GenAINews.Name:    GenAINews,
		ProductIdeas.Name: ProductIdeas,
	}
}
