package prompt

import (
	"regexp"
	"strings"

	"github.com/siherrmann/controlrag/model"
)

// Section headers of a structured control answer.
const (
	SectionPurpose               = "Purpose"
	SectionControlRequirements   = "Control Requirements"
	SectionCommonImplementations = "Common Implementations"
	SectionTypicalEvidence       = "Typical Evidence"
)

// Placeholder is written into sections the model did not produce.
const Placeholder = "Not covered by the retrieved references."

var sectionOrder = []string{
	SectionPurpose,
	SectionControlRequirements,
	SectionCommonImplementations,
	SectionTypicalEvidence,
}

var (
	sectionHeader = regexp.MustCompile(`(?i)^\s*#{1,6}\s*(purpose|control requirements|common implementations|typical evidence)\s*:?\s*#*\s*$`)
	bulletPrefix  = regexp.MustCompile(`^(?:[-*+•]|\d{1,3}[.)])\s+`)
)

// ParseFourSectionControlResponse splits a structured answer into its sections.
// Text before the first known header is ignored. Every non-empty line of a
// list section becomes one item with its bullet marker removed.
func ParseFourSectionControlResponse(text string) model.FourSectionResponse {
	bodies := map[string][]string{}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			current = canonicalSection(m[1])
			continue
		}
		if current != "" {
			bodies[current] = append(bodies[current], line)
		}
	}

	r := model.FourSectionResponse{
		Purpose:               strings.TrimSpace(strings.Join(bodies[SectionPurpose], "\n")),
		ControlRequirements:   listItems(bodies[SectionControlRequirements]),
		CommonImplementations: listItems(bodies[SectionCommonImplementations]),
		TypicalEvidence:       listItems(bodies[SectionTypicalEvidence]),
	}
	return validate(r)
}

// FormatFourSectionResponse renders the present sections as Markdown.
func FormatFourSectionResponse(r model.FourSectionResponse) string {
	var sb strings.Builder

	write := func(header string, body string) {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## ")
		sb.WriteString(header)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}

	if r.Purpose != "" {
		write(SectionPurpose, r.Purpose)
	}
	for _, s := range []struct {
		header string
		items  []string
	}{
		{SectionControlRequirements, r.ControlRequirements},
		{SectionCommonImplementations, r.CommonImplementations},
		{SectionTypicalEvidence, r.TypicalEvidence},
	} {
		if len(s.items) == 0 {
			continue
		}
		lines := make([]string, len(s.items))
		for i, item := range s.items {
			lines[i] = "- " + item
		}
		write(s.header, strings.Join(lines, "\n"))
	}

	return sb.String()
}

// CompleteFourSections fills missing sections with a placeholder and returns
// the names of the synthesized sections.
func CompleteFourSections(r model.FourSectionResponse) (model.FourSectionResponse, []string) {
	r = validate(r)
	synthesized := r.MissingSections

	for _, name := range synthesized {
		switch name {
		case SectionPurpose:
			r.Purpose = Placeholder
		case SectionControlRequirements:
			r.ControlRequirements = []string{Placeholder}
		case SectionCommonImplementations:
			r.CommonImplementations = []string{Placeholder}
		case SectionTypicalEvidence:
			r.TypicalEvidence = []string{Placeholder}
		}
	}

	return validate(r), synthesized
}

// AppendMissingSections adds placeholder sections for the names in missing
// and leaves the rest of text as written. An empty header already in text
// receives its placeholder in place, others are appended in section order.
func AppendMissingSections(text string, missing []string) string {
	pending := map[string]bool{}
	for _, name := range missing {
		if name = canonicalSection(name); name != "" {
			pending[name] = true
		}
	}
	if len(pending) == 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+3*len(pending))
	for _, line := range lines {
		out = append(out, line)
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			if name := canonicalSection(m[1]); pending[name] {
				out = append(out, placeholderBody(name))
				delete(pending, name)
			}
		}
	}

	result := strings.TrimRight(strings.Join(out, "\n"), "\n")
	for _, name := range sectionOrder {
		if pending[name] {
			result += "\n\n## " + name + "\n" + placeholderBody(name)
		}
	}
	return result
}

func placeholderBody(name string) string {
	if name == SectionPurpose {
		return Placeholder
	}
	return "- " + Placeholder
}

// validate recomputes IsValid and MissingSections.
func validate(r model.FourSectionResponse) model.FourSectionResponse {
	present := map[string]bool{
		SectionPurpose:               r.Purpose != "",
		SectionControlRequirements:   len(r.ControlRequirements) > 0,
		SectionCommonImplementations: len(r.CommonImplementations) > 0,
		SectionTypicalEvidence:       len(r.TypicalEvidence) > 0,
	}

	r.MissingSections = []string{}
	for _, name := range sectionOrder {
		if !present[name] {
			r.MissingSections = append(r.MissingSections, name)
		}
	}
	r.IsValid = len(sectionOrder)-len(r.MissingSections) >= 2
	return r
}

func canonicalSection(header string) string {
	for _, name := range sectionOrder {
		if strings.EqualFold(name, header) {
			return name
		}
	}
	return ""
}

func listItems(lines []string) []string {
	items := []string{}
	for _, line := range lines {
		item := strings.TrimSpace(line)
		item = strings.TrimSpace(bulletPrefix.ReplaceAllString(item, ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
