package selector

import (
	"fmt"
	"strings"

	"IntelDigest/internal/domain"
)

// BuildPrompt lists candidate ids and titles and asks for a ranked JSON array.
// Content is never included so the prompt stays bounded by the title lengths.
func BuildPrompt(persona domain.Persona, candidates []Candidate, topK int) string {
	want := min(topK, len(candidates))

	var b strings.Builder
	fmt.Fprintf(&b, "You are curating a daily digest: %s.\n", persona.Description)
	fmt.Fprintf(&b, "From the %d items below, select the %d most valuable ones.\n\n", len(candidates), want)

	b.WriteString("Items:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, oneLine(c.Title))
	}

	b.WriteString("\nReturn ONLY a JSON array with exactly ")
	fmt.Fprintf(&b, "%d objects, sorted by %q descending. Each object must have:\n", want, persona.ScoreField)
	b.WriteString(`- "id": the item id from the list above, as a string` + "\n")
	writeFieldSpec(&b, persona)

	b.WriteString("\nDo not include any text outside the JSON array.\n")
	return b.String()
}

func writeFieldSpec(b *strings.Builder, persona domain.Persona) {
	hasScore := false
	for _, f := range persona.Fields {
		if f.Name == persona.ScoreField {
			hasScore = true
		}
		fmt.Fprintf(b, "- %q: %s", f.Name, describeKind(f))
		if f.Description != "" {
			fmt.Fprintf(b, " (%s)", f.Description)
		}
		b.WriteByte('\n')
	}
	if !hasScore {
		fmt.Fprintf(b, "- %q: %s\n", persona.ScoreField, describeKind(domain.FieldSpec{Kind: domain.KindFloat01}))
	}
}

func describeKind(f domain.FieldSpec) string {
	switch f.Kind {
	case domain.KindFloat01:
		return "number between 0.0 and 1.0"
	case domain.KindEnum:
		return "one of " + strings.Join(f.Values, ", ")
	default:
		return "string"
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
