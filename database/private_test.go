package database

import (
	"context"
	"testing"

	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrivateHandler(t *testing.T, table string) *PrivateCorpusDBHandler {
	database := initDB(t)
	_, err := database.Instance.Exec(`DROP TABLE IF EXISTS ` + table)
	require.NoError(t, err)

	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	h, err := NewPrivateCorpusDBHandler(context.Background(), dbConfig.ConnectionString(), table, testDim, nil)
	require.NoError(t, err, "Expected NewPrivateCorpusDBHandler to not return an error")
	t.Cleanup(h.Close)
	return h
}

func TestNewPrivateCorpusDBHandler(t *testing.T) {
	t.Run("Invalid table name", func(t *testing.T) {
		_, err := NewPrivateCorpusDBHandler(context.Background(), "postgres://localhost/db", "drop table;", testDim, nil)
		assert.ErrorContains(t, err, "invalid table name")
	})

	t.Run("Invalid dimension", func(t *testing.T) {
		_, err := NewPrivateCorpusDBHandler(context.Background(), "postgres://localhost/db", "", 0, nil)
		assert.Error(t, err)
	})

	t.Run("Default table is created", func(t *testing.T) {
		h := newPrivateHandler(t, DefaultPrivateTable)
		assert.Equal(t, DefaultPrivateTable, h.table)
		assert.NoError(t, h.CheckHealth(context.Background()))
	})
}

func TestPrivateCorpusQuery(t *testing.T) {
	ctx := context.Background()
	h := newPrivateHandler(t, "private_test_documents")

	require.NoError(t, h.Insert(ctx, "policy-1", "Accounts are reviewed quarterly.", model.Metadata{"owner": "it"}, []float32{1, 0, 0}))
	require.NoError(t, h.Insert(ctx, "policy-2", "Visitors sign in at reception.", nil, []float32{0, 1, 0}))

	t.Run("Nearest document first with its distance", func(t *testing.T) {
		records, err := h.QueryPrivate(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "policy-1", records[0].ID)
		assert.InDelta(t, 0.0, records[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, records[1].Distance, 1e-6)
		assert.Equal(t, "it", records[0].Metadata.String("owner"))
		assert.NotNil(t, records[1].Metadata, "Expected empty metadata instead of nil")
	})

	t.Run("Insert replaces an existing id", func(t *testing.T) {
		require.NoError(t, h.Insert(ctx, "policy-2", "Visitors are escorted.", nil, []float32{1, 0, 0}))

		records, err := h.QueryPrivate(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.InDelta(t, 0.0, records[0].Distance, 1e-6)
	})

	t.Run("Insert without embedding is invalid", func(t *testing.T) {
		err := h.Insert(ctx, "policy-3", "text", nil, nil)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})

	t.Run("Delete removes the document", func(t *testing.T) {
		require.NoError(t, h.Delete(ctx, "policy-1"))
		require.NoError(t, h.Delete(ctx, "policy-1"), "Expected deleting a missing id to succeed")

		records, err := h.QueryPrivate(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "policy-2", records[0].ID)
	})
}
