package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	loadSql "github.com/siherrmann/controlrag/sql"
)

// ChunksDBHandlerFunctions defines the interface for chunk database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	DeleteChunk(ctx context.Context, id int) error
	SelectChunk(ctx context.Context, id int) (*model.Chunk, error)
	SelectChunksByControl(ctx context.Context, controlID string) ([]*model.Chunk, error)
	SelectChunksByPathDescendant(ctx context.Context, path string) ([]*model.Chunk, error)
	SelectControlNames(ctx context.Context) (map[string]string, error)
	QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error)
	CheckHealth(ctx context.Context) error
}

// ChunksDBHandler is the shared corpus of small chunks.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler loads the chunk functions and creates the chunks table.
// If force is true the functions are reloaded even if they exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", slog.Int("embedding_dim", embeddingDim))

	return chunksDbHandler, nil
}

// CreateTable creates the chunks table and its indexes if they are missing.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts chunk and fills its generated fields.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk == nil {
		return helper.NewError("insert chunk", fmt.Errorf("chunk is nil"))
	}

	var embedding any
	if len(chunk.Embedding) > 0 {
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5)`,
		chunk.Content,
		chunk.Path,
		embedding,
		chunk.ChunkIndex,
		chunk.Metadata,
	)

	inserted, err := scanChunk(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*chunk = *inserted

	return nil
}

// DeleteChunk deletes a chunk by its id.
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id int) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunk($1)`, id)
	if err != nil {
		return helper.NewError("delete", err)
	}
	return nil
}

// SelectChunk returns the chunk with id.
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id int) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_chunk($1)`, id)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select chunk", fmt.Errorf("%w: chunk %d", model.ErrNotFound, id))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByControl returns all chunks of a control ordered by path.
func (h *ChunksDBHandler) SelectChunksByControl(ctx context.Context, controlID string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunks_by_control($1)`, controlID)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectChunksByPathDescendant returns all chunks at or below path.
func (h *ChunksDBHandler) SelectChunksByPathDescendant(ctx context.Context, path string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunks_by_path_descendant($1)`, path)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectControlNames returns the control names stored with the chunks,
// keyed by upper case control id.
func (h *ChunksDBHandler) SelectControlNames(ctx context.Context) (map[string]string, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_control_names()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	names := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, helper.NewError("scan", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return names, nil
}

// QuerySmallChunks returns the topK nearest small chunks matching filters.
// RawScore is the cosine similarity, 1 minus the cosine distance.
func (h *ChunksDBHandler) QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error) {
	if len(embedding) == 0 {
		return nil, helper.NewError("query small chunks", fmt.Errorf("%w: empty embedding", model.ErrInvalidRequest))
	}
	if topK <= 0 {
		return []model.ChunkCandidate{}, nil
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM query_small_chunks($1, $2, $3, $4, $5)`,
		pgvector.NewVector(embedding),
		topK,
		pq.Array(filters.DocumentTypes),
		pq.Array(upperAll(filters.Families)),
		pq.Array(upperAll(filters.ControlIDs)),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	candidates := []model.ChunkCandidate{}
	for rows.Next() {
		var id int
		var rid string
		var content string
		var metadata model.Metadata
		var similarity float64
		if err := rows.Scan(&id, &rid, &content, &metadata, &similarity); err != nil {
			return nil, helper.NewError("scan", err)
		}
		candidates = append(candidates, model.ChunkCandidate{
			ID:        rid,
			SmallText: content,
			Metadata:  metadata.ChunkMetadata(),
			RawScore:  similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	h.db.Logger.Debug("Queried small chunks", slog.Int("results", len(candidates)), slog.Int("top_k", topK))

	return candidates, nil
}

// CheckHealth pings the database and verifies the chunk functions exist.
func (h *ChunksDBHandler) CheckHealth(ctx context.Context) error {
	if err := h.db.CheckHealth(ctx); err != nil {
		return err
	}
	exist, err := loadSql.CheckFunctions(h.db.Instance, loadSql.ChunksFunctions)
	if err != nil {
		return helper.NewError("check functions", err)
	}
	if !exist {
		return helper.NewError("check functions", fmt.Errorf("chunk functions are missing"))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	var embedding pgvector.Vector
	var hasEmbedding sql.NullString
	var chunkIndex sql.NullInt64

	err := row.Scan(
		&chunk.ID,
		&chunk.RID,
		&chunk.Content,
		&chunk.Path,
		&hasEmbedding,
		&chunkIndex,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hasEmbedding.Valid {
		if err := embedding.Scan(hasEmbedding.String); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.Slice()
	}
	if chunkIndex.Valid {
		index := int(chunkIndex.Int64)
		chunk.ChunkIndex = &index
	}

	return chunk, nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}
	return chunks, nil
}

func upperAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	upper := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			upper = append(upper, v)
		}
	}
	return upper
}
