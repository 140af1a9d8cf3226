package pipeline

import (
	"strings"
	"testing"

	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPrefix(t *testing.T) {
	prefix := ContextPrefix(model.Control{ID: "AC-2", Name: "Account Management", Family: "AC", DocumentType: DocumentTypeCatalog})
	assert.Equal(t, "NIST SP 800-53 Rev. 5 Control Catalog | Control AC-2 - Account Management (Family AC)", prefix)

	assert.Equal(t, "Source Document", ContextPrefix(model.Control{DocumentType: "unknown"}))
}

func TestControlChunks(t *testing.T) {
	estimator := budget.NewEstimator(4)

	t.Run("Build catalog chunk", func(t *testing.T) {
		chunks, err := ControlChunks(model.Control{
			ID:         "ac-2",
			Name:       "Account Management",
			Text:       "Define and document the types of accounts allowed.",
			Discussion: "Examples of system account types include individual and shared accounts.",
			Related:    []string{"AC-3", "AC-5"},
		}, estimator)
		require.NoError(t, err)
		require.Len(t, chunks, 1)

		c := chunks[0]
		assert.Equal(t, "Control AC-2 (Account Management): Define and document the types of accounts allowed.", c.Content)
		assert.Equal(t, "800_53.ac_2.p0.s0", c.Path)

		meta := c.Metadata.ChunkMetadata()
		assert.Equal(t, "AC-2", meta.ControlID)
		assert.Equal(t, "Account Management", meta.ControlName)
		assert.Equal(t, "AC", meta.Family)
		assert.Equal(t, DocumentTypeCatalog, meta.DocumentType)
		assert.True(t, strings.HasPrefix(meta.ParentText, "NIST SP 800-53 Rev. 5 Control Catalog | Control AC-2"))
		assert.Contains(t, meta.ParentText, "Discussion: Examples of system account types")
		assert.Contains(t, meta.ParentText, "Related controls: AC-3, AC-5")
		assert.Contains(t, meta.ParentText, "Evidence suggestions:\n- Access control lists (ACLs) and permission configurations")
		assert.Equal(t, estimator.Tokens(meta.ParentText), meta.ParentTokenCount)
		assert.NotEmpty(t, meta.ParentID)
	})

	t.Run("Small text is truncated", func(t *testing.T) {
		chunks, err := ControlChunks(model.Control{ID: "AC-3", Name: "Access Enforcement", Text: strings.Repeat("ä", 700)}, estimator)
		require.NoError(t, err)

		assert.Equal(t, "Control AC-3 (Access Enforcement): "+strings.Repeat("ä", 500), chunks[0].Content)
		assert.Contains(t, chunks[0].Metadata.String(model.MetaParentText), strings.Repeat("ä", 700), "Expected the parent to keep the full text")
	})

	t.Run("Parent token count uses the given ratio", func(t *testing.T) {
		control := model.Control{ID: "AC-2", Name: "Account Management", Text: "Define and document the types of accounts allowed."}
		halfRatio := budget.NewEstimator(2)

		chunks, err := ControlChunks(control, halfRatio)
		require.NoError(t, err)

		parent := chunks[0].Metadata.String(model.MetaParentText)
		assert.Equal(t, halfRatio.Tokens(parent), chunks[0].Metadata.Int(model.MetaParentTokenCount))
	})

	t.Run("Controls without related entries omit the block", func(t *testing.T) {
		chunks, err := ControlChunks(model.Control{ID: "SC-7", Name: "Boundary Protection", Text: "Monitor communications."}, estimator)
		require.NoError(t, err)

		parent := chunks[0].Metadata.String(model.MetaParentText)
		assert.NotContains(t, parent, "Related controls")
		assert.Contains(t, parent, "- Boundary protection configurations", "Expected the SC evidence suggestions")
	})

	t.Run("Missing id or text", func(t *testing.T) {
		_, err := ControlChunks(model.Control{Text: "text"}, estimator)
		assert.Error(t, err)

		_, err = ControlChunks(model.Control{ID: "AC-2", Text: " "}, estimator)
		assert.Error(t, err)
	})
}

func TestEvidenceSuggestions(t *testing.T) {
	assert.Contains(t, EvidenceSuggestions("au"), "Sample audit log entries")
	assert.Contains(t, EvidenceSuggestions("ZZ"), "Policy and procedure documentation", "Expected the generic list for unknown families")
}

func TestParseRelated(t *testing.T) {
	assert.Equal(t, []string{"AC-3", "AC-5", "PM-9"}, ParseRelated("ac-3, AC-5;PM-9 AC-3"))
	assert.Nil(t, ParseRelated("  "))
}

func TestLoadControlCatalogCSV(t *testing.T) {
	t.Run("Read catalog", func(t *testing.T) {
		csv := "identifier,name,control_text,discussion,related\n" +
			"ac-2,Account Management,\"Define accounts, and review them.\",Shared accounts.,AC-3\n" +
			"AC-3,Access Enforcement,,,\n" +
			",No Id,Text,,\n" +
			"SC-7,Boundary Protection,Monitor communications.,,\n"

		controls, err := LoadControlCatalogCSV(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, controls, 2, "Expected rows without id or text to be skipped")

		assert.Equal(t, model.Control{
			ID:           "AC-2",
			Name:         "Account Management",
			Family:       "AC",
			Text:         "Define accounts, and review them.",
			Discussion:   "Shared accounts.",
			Related:      []string{"AC-3"},
			DocumentType: DocumentTypeCatalog,
		}, controls[0])
		assert.Nil(t, controls[1].Related)
		assert.Equal(t, "SC", controls[1].Family)
	})

	t.Run("Short header names", func(t *testing.T) {
		controls, err := LoadControlCatalogCSV(strings.NewReader("id,name,text\nAC-1,Policy and Procedures,Develop a policy.\n"))
		require.NoError(t, err)
		require.Len(t, controls, 1)
		assert.Empty(t, controls[0].Discussion)
	})

	t.Run("Missing text column", func(t *testing.T) {
		_, err := LoadControlCatalogCSV(strings.NewReader("id,name\nAC-1,Policy\n"))
		assert.Error(t, err)
	})

	t.Run("Empty input", func(t *testing.T) {
		controls, err := LoadControlCatalogCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, controls)
	})
}
