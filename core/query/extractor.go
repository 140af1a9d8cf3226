package query

import (
	"regexp"
	"strings"
)

var controlIDPattern = regexp.MustCompile(`(?i)\b([a-z]{2})-(\d{1,3})\b(?:\s*\(\s*(\d{1,3})\s*\))?`)

// ExtractControlIDs returns the control identifiers mentioned in text.
// IDs are uppercased, deduplicated and kept in first-seen order.
func ExtractControlIDs(text string) []string {
	matches := controlIDPattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))

	for _, m := range matches {
		id := strings.ToUpper(m[1]) + "-" + strings.TrimLeft(m[2], "0")
		if strings.HasSuffix(id, "-") {
			id += "0"
		}
		if m[3] != "" {
			id += "(" + m[3] + ")"
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids
}

// FamilyOf returns the family code of a control id ("AC" for "AC-2(1)").
func FamilyOf(id string) string {
	family, _, found := strings.Cut(id, "-")
	if !found {
		return ""
	}
	return strings.ToUpper(family)
}

// BaseControlID strips the enhancement number ("AC-2" for "AC-2(1)").
func BaseControlID(id string) string {
	base, _, _ := strings.Cut(id, "(")
	return base
}
