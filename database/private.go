package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// DefaultPrivateTable is the table of the private corpus.
const DefaultPrivateTable = "private_documents"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PrivateCorpusDBHandler stores documents that are only searched on request,
// for example an organisation's own policies.
type PrivateCorpusDBHandler struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// NewPrivateCorpusDBHandler connects to connString and creates table if missing.
func NewPrivateCorpusDBHandler(ctx context.Context, connString string, table string, embeddingDim int, logger *slog.Logger) (*PrivateCorpusDBHandler, error) {
	if table == "" {
		table = DefaultPrivateTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, helper.NewError("table name validation", fmt.Errorf("invalid table name %q", table))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, helper.NewError("connect", err)
	}

	h := &PrivateCorpusDBHandler{pool: pool, table: table, logger: logger}
	if err := h.CreateTable(ctx, embeddingDim); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Initialized PrivateCorpusDBHandler", slog.String("table", table))

	return h, nil
}

// CreateTable creates the private corpus table if it does not exist.
func (h *PrivateCorpusDBHandler) CreateTable(ctx context.Context, embeddingDim int) error {
	_, err := h.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%[2]d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, h.table, embeddingDim))
	if err != nil {
		return helper.NewError("create table", err)
	}
	return nil
}

// Insert stores or replaces a private document.
func (h *PrivateCorpusDBHandler) Insert(ctx context.Context, id string, content string, metadata model.Metadata, embedding []float32) error {
	if id == "" || len(embedding) == 0 {
		return helper.NewError("insert private document", fmt.Errorf("%w: id and embedding are required", model.ErrInvalidRequest))
	}

	metadataJSON, err := metadata.Marshal()
	if err != nil {
		return helper.NewError("marshal metadata", err)
	}

	_, err = h.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, h.table),
		id, content, string(metadataJSON), pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("insert private document", err)
	}

	return nil
}

// Delete removes a private document. Deleting a missing id is not an error.
func (h *PrivateCorpusDBHandler) Delete(ctx context.Context, id string) error {
	result, err := h.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, h.table), id)
	if err != nil {
		return helper.NewError("delete private document", err)
	}
	if result.RowsAffected() == 0 {
		h.logger.Warn("Private document not found", slog.String("id", id))
	}
	return nil
}

// QueryPrivate returns the topK nearest private documents by cosine distance.
func (h *PrivateCorpusDBHandler) QueryPrivate(ctx context.Context, embedding []float32, topK int) ([]model.PrivateRecord, error) {
	if topK <= 0 {
		return []model.PrivateRecord{}, nil
	}

	rows, err := h.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT $2`, h.table),
		pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, helper.NewError("query private documents", err)
	}
	defer rows.Close()

	records := []model.PrivateRecord{}
	for rows.Next() {
		var record model.PrivateRecord
		var metadata []byte
		if err := rows.Scan(&record.ID, &record.Text, &metadata, &record.Distance); err != nil {
			return nil, helper.NewError("scan", err)
		}
		if err := record.Metadata.Unmarshal(metadata); err != nil {
			return nil, helper.NewError("unmarshal metadata", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// CheckHealth pings the pool.
func (h *PrivateCorpusDBHandler) CheckHealth(ctx context.Context) error {
	if err := h.pool.Ping(ctx); err != nil {
		return helper.NewError("ping", err)
	}
	return nil
}

// Close closes the pool.
func (h *PrivateCorpusDBHandler) Close() {
	h.pool.Close()
}
