package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractControlIDs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"Single control", "What is AC-2?", []string{"AC-2"}},
		{"Lowercase is normalized", "explain ac-2 and sc-7", []string{"AC-2", "SC-7"}},
		{"Enhancement number", "Does AC-2(1) apply?", []string{"AC-2(1)"}},
		{"Enhancement with inner whitespace", "see ac-2 (4) here", []string{"AC-2(4)"}},
		{"Duplicates keep first position", "AC-3, IA-2 and again ac-3", []string{"AC-3", "IA-2"}},
		{"Base and enhancement are distinct", "AC-2 vs AC-2(1)", []string{"AC-2", "AC-2(1)"}},
		{"Leading zeros are dropped", "AC-02", []string{"AC-2"}},
		{"No match", "How should accounts be reviewed?", []string{}},
		{"Embedded in a word is ignored", "XAC-2 is not a control", []string{}},
		{"Too many digits is ignored", "ticket AC-2345", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractControlIDs(tt.text))
		})
	}
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, "AC", FamilyOf("AC-2(1)"))
	assert.Equal(t, "SC", FamilyOf("sc-7"))
	assert.Equal(t, "", FamilyOf("nothing"))
}

func TestBaseControlID(t *testing.T) {
	assert.Equal(t, "AC-2", BaseControlID("AC-2(1)"))
	assert.Equal(t, "AC-2", BaseControlID("AC-2"))
}
