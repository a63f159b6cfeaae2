package rag

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.1,0.25,-1]", vectorLiteral([]float64{0.1, 0.25, -1}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestPgVectorStore_SearchDocuments(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPgVectorStore(db, zap.NewNop())

	rows := sqlmock.NewRows([]string{
		"id", "case_title", "reasons_summary", "reasons",
		"citation_number", "case_topic", "catchwords", "case_url", "similarity",
	}).
		AddRow(7, "Smith and Jones", "summary text", "full reasons",
			"[2021] WASAT 42", "tenancy", "lease", "https://example.org/42", 0.83).
		AddRow(9, "Brown and White", "other summary", "other reasons",
			"[2020] WASAT 7", "tenancy", "bond", "https://example.org/7", 0.61)

	mock.ExpectQuery(`SELECT(.|\n)*FROM satdata(.|\n)*ORDER BY reasons_summary_embedding`).
		WillReturnRows(rows)

	results, err := store.SearchDocuments(context.Background(), []float64{0.1, 0.2}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(7), results[0].ID)
	assert.Equal(t, KindDocument, results[0].Kind)
	assert.Equal(t, "Smith and Jones", results[0].Title)
	assert.Equal(t, "[2021] WASAT 42", results[0].Citation)
	assert.Equal(t, "https://example.org/42", results[0].CaseURL)
	assert.InDelta(t, 0.83, results[0].Similarity, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorStore_SearchDocuments_TopicFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPgVectorStore(db, zap.NewNop())

	mock.ExpectQuery(`FROM satdata(.|\n)*WHERE case_topic =`).
		WithArgs("[1]", "strata", "[1]", 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.SearchDocuments(context.Background(), []float64{1}, 4, "strata")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorStore_SearchChunks(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPgVectorStore(db, zap.NewNop())

	rows := sqlmock.NewRows([]string{
		"chunk_id", "chunk_text", "chunk_index", "case_id", "case_topic",
		"case_title", "reasons", "citation_number", "case_url", "similarity",
	}).AddRow(3, "the tribunal found", 0, 7, "tenancy",
		"Smith and Jones", "full reasons", "[2021] WASAT 42", "https://example.org/42", 0.77)

	mock.ExpectQuery(`FROM reasons_chunks rc(.|\n)*JOIN satdata s ON rc\.case_id = s\.id`).
		WillReturnRows(rows)

	results, err := store.SearchChunks(context.Background(), []float64{0.3}, 5, 0, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, KindChunk, results[0].Kind)
	assert.Equal(t, int64(7), results[0].CaseID)
	assert.Equal(t, "the tribunal found", results[0].ChunkText)
}

func TestPgVectorStore_SearchChunks_CaseAndTopicFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPgVectorStore(db, zap.NewNop())

	mock.ExpectQuery(`AND rc\.case_id =(.|\n)*AND rc\.case_topic =`).
		WithArgs("[1]", int64(7), "tenancy", "[1]", 5).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}))

	_, err := store.SearchChunks(context.Background(), []float64{1}, 5, 7, "tenancy")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorStore_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPgVectorStore(db, zap.NewNop())

	mock.ExpectQuery(`FROM satdata`).WillReturnError(assert.AnError)

	_, err := store.SearchDocuments(context.Background(), []float64{1}, 4, "")
	assert.Error(t, err)
}
