package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/controlrag/helper"
)

// IndexType is an approximate nearest neighbour index of pgvector.
type IndexType string

const (
	IndexHNSW    IndexType = "hnsw"
	IndexIVFFlat IndexType = "ivfflat"
)

// IndexOptions tunes the vector index. Zero values use the pgvector defaults.
type IndexOptions struct {
	// HNSW
	M              int
	EfConstruction int
	// IVFFlat
	Lists int
}

// ParseIndexType parses "hnsw" or "ivfflat".
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(s); t {
	case IndexHNSW, IndexIVFFlat:
		return t, nil
	}
	return "", helper.NewError("parse index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", s))
}

func (o IndexOptions) createStatement(indexType IndexType) (string, error) {
	switch indexType {
	case IndexHNSW:
		m, ef := o.M, o.EfConstruction
		if m <= 0 {
			m = 16
		}
		if ef <= 0 {
			ef = 64
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, ef,
		), nil
	case IndexIVFFlat:
		lists := o.Lists
		if lists <= 0 {
			lists = 100
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	}
	return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType)
}

// RebuildIndex replaces the embedding index of the chunks table.
// The drop and the create run in one transaction.
func (h *ChunksDBHandler) RebuildIndex(ctx context.Context, indexType IndexType, options IndexOptions) error {
	statement, err := options.createStatement(indexType)
	if err != nil {
		return helper.NewError("rebuild index", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`); err != nil {
		return helper.NewError("drop index", err)
	}
	if _, err := tx.ExecContext(ctx, statement); err != nil {
		return helper.NewError("create index", err)
	}
	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Rebuilt vector index", slog.String("type", string(indexType)))

	return nil
}
