package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/core/query"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// DocumentTypeCatalog is the document type of control catalog chunks.
const DocumentTypeCatalog = "800-53"

// smallTextLimit is the number of statement runes in a control's small chunk.
const smallTextLimit = 500

var documentLabels = map[string]string{
	"800-53":             "NIST SP 800-53 Rev. 5 Control Catalog",
	"800-53a_assessment": "NIST SP 800-53A Rev. 5 Assessment Procedures",
	"800-37_rmf":         "NIST SP 800-37 Rev. 2 RMF Lifecycle",
	"csf_2.0":            "NIST Cybersecurity Framework 2.0",
	"800-171":            "NIST SP 800-171 Rev. 3 (CUI Requirements)",
	"fedramp":            "FedRAMP Security Baseline",
}

// DocumentLabel returns the human readable name of a document type.
func DocumentLabel(documentType string) string {
	if label, ok := documentLabels[documentType]; ok {
		return label
	}
	return "Source Document"
}

// ContextPrefix describes where a control chunk comes from.
func ContextPrefix(control model.Control) string {
	parts := []string{DocumentLabel(control.DocumentType)}

	if control.ID != "" {
		part := "Control " + control.ID
		if control.Name != "" {
			part += " - " + control.Name
		}
		if control.Family != "" {
			part += " (Family " + control.Family + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " | ")
}

// ControlChunks builds the single retrieval chunk of a catalog control.
// The small text holds the id, name and beginning of the statement, the
// parent text the full statement with its discussion, the related controls
// and evidence suggestions of the family. Parent tokens are counted with
// estimator.
func ControlChunks(control model.Control, estimator budget.Estimator) ([]ChunkWithPath, error) {
	control.ID = strings.ToUpper(strings.TrimSpace(control.ID))
	if control.ID == "" {
		return nil, helper.NewError("build control chunks", fmt.Errorf("control id is empty"))
	}
	if strings.TrimSpace(control.Text) == "" {
		return nil, helper.NewError("build control chunks", fmt.Errorf("control %s has no text", control.ID))
	}
	if control.DocumentType == "" {
		control.DocumentType = DocumentTypeCatalog
	}
	if control.Family == "" {
		control.Family = query.FamilyOf(control.ID)
	}

	prefix := ContextPrefix(control)
	small := fmt.Sprintf("Control %s (%s): %s", control.ID, control.Name, truncateRunes(strings.TrimSpace(control.Text), smallTextLimit))

	parent := ParentText(control)

	basePath := LtreeLabel(control.DocumentType) + "." + LtreeLabel(control.ID)
	index := 0

	return []ChunkWithPath{{
		Content:    small,
		Path:       basePath + ".p0.s0",
		ChunkIndex: &index,
		Metadata: model.Metadata{
			model.MetaControlID:        control.ID,
			model.MetaControlName:      control.Name,
			model.MetaFamily:           control.Family,
			model.MetaDocumentType:     control.DocumentType,
			model.MetaParentID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(basePath)).String(),
			model.MetaParentText:       parent,
			model.MetaParentTokenCount: estimator.Tokens(parent),
			model.MetaIsSmallChunk:     true,
			"context_prefix":           prefix,
		},
	}}, nil
}

// ParentText renders the text handed to the language model for a control.
func ParentText(control model.Control) string {
	var b strings.Builder
	b.WriteString(ContextPrefix(control))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(control.Text))

	if discussion := strings.TrimSpace(control.Discussion); discussion != "" {
		b.WriteString("\n\nDiscussion: ")
		b.WriteString(discussion)
	}
	if len(control.Related) > 0 {
		b.WriteString("\n\nRelated controls: ")
		b.WriteString(strings.Join(control.Related, ", "))
	}

	b.WriteString("\n\nEvidence suggestions:")
	for _, evidence := range EvidenceSuggestions(control.Family) {
		b.WriteString("\n- ")
		b.WriteString(evidence)
	}
	return b.String()
}

// ParseRelated splits a related controls cell like "AC-3, AC-5 PM-9".
func ParseRelated(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil
	}

	related := make([]string, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		id := strings.ToUpper(f)
		if !seen[id] {
			seen[id] = true
			related = append(related, id)
		}
	}
	return related
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var csvColumns = map[string]string{
	"id":               "id",
	"identifier":       "id",
	"control_id":       "id",
	"name":             "name",
	"control_name":     "name",
	"text":             "text",
	"control_text":     "text",
	"discussion":       "discussion",
	"related":          "related",
	"related_controls": "related",
}

// LoadControlCatalogCSV reads a catalog export with a header row naming
// the id, name, text and optional discussion and related columns. Rows without id or
// text are skipped.
func LoadControlCatalogCSV(r io.Reader) ([]model.Control, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Control{}, nil
	} else if err != nil {
		return nil, helper.NewError("read catalog header", err)
	}

	columns := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := csvColumns[name]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"id", "text"} {
		if _, ok := columns[required]; !ok {
			return nil, helper.NewError("read catalog header", fmt.Errorf("missing %s column", required))
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	controls := []model.Control{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, helper.NewError("read catalog row", err)
		}

		control := model.Control{
			ID:           strings.ToUpper(field(record, "id")),
			Name:         field(record, "name"),
			Text:         field(record, "text"),
			Discussion:   field(record, "discussion"),
			Related:      ParseRelated(field(record, "related")),
			DocumentType: DocumentTypeCatalog,
		}
		if control.ID == "" || control.Text == "" {
			continue
		}
		control.Family = query.FamilyOf(control.ID)
		controls = append(controls, control)
	}
	return controls, nil
}
