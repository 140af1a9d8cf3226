package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/siherrmann/controlrag/helper"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaControlID        = "control_id"
	MetaControlName      = "control_name"
	MetaDocumentType     = "document_type"
	MetaFamily           = "family"
	MetaIsSmallChunk     = "is_small_chunk"
	MetaParentID         = "parent_id"
	MetaParentText       = "parent_text"
	MetaParentTokenCount = "parent_token_count"
)

// Metadata represents JSONB metadata stored in PostgreSQL
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes
func (m Metadata) Marshal() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes, a JSON string or Metadata to Metadata
func (m *Metadata) Unmarshal(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	switch v := value.(type) {
	case Metadata:
		*m = v
		return nil
	case map[string]interface{}:
		*m = Metadata(v)
		return nil
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	}

	return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
}

// String returns the value of key as a string, or "" if missing.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Int returns the value of key as an int.
// JSON numbers decode to float64, strings are parsed.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// ChunkMetadata extracts the typed retrieval metadata.
func (m Metadata) ChunkMetadata() ChunkMetadata {
	return ChunkMetadata{
		ControlID:        m.String(MetaControlID),
		ControlName:      m.String(MetaControlName),
		DocumentType:     m.String(MetaDocumentType),
		Family:           m.String(MetaFamily),
		ParentID:         m.String(MetaParentID),
		ParentText:       m.String(MetaParentText),
		ParentTokenCount: m.Int(MetaParentTokenCount),
	}
}

// Metadata converts the typed metadata back into its JSONB form.
func (c ChunkMetadata) Metadata() Metadata {
	m := Metadata{
		MetaDocumentType:     c.DocumentType,
		MetaParentText:       c.ParentText,
		MetaParentTokenCount: c.ParentTokenCount,
	}
	if c.ControlID != "" {
		m[MetaControlID] = c.ControlID
	}
	if c.ControlName != "" {
		m[MetaControlName] = c.ControlName
	}
	if c.Family != "" {
		m[MetaFamily] = c.Family
	}
	if c.ParentID != "" {
		m[MetaParentID] = c.ParentID
	}
	return m
}
