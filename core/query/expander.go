package query

import "strings"

// Expander appends control names to a query before it is embedded.
type Expander struct {
	catalog ControlCatalog
}

// NewExpander creates an expander resolving names from catalog.
func NewExpander(catalog ControlCatalog) *Expander {
	return &Expander{catalog: catalog}
}

// Expand appends the name of every resolvable id that is not already
// contained in the text, at most once per control.
func (e *Expander) Expand(query string, ids []string) string {
	if e == nil || e.catalog == nil || len(ids) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString(query)
	lowered := strings.ToLower(query)

	for _, id := range ids {
		name, ok := e.catalog.Name(id)
		if !ok || name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(name)) {
			continue
		}
		b.WriteString(" ")
		b.WriteString(name)
		lowered += " " + strings.ToLower(name)
	}

	return b.String()
}
