package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PgVectorStore 基于 Postgres + pgvector 的语料检索。
// 相似度使用 `1 - (embedding <-> query)`，ORDER BY 直接用距离以命中
// ivfflat 索引。
type PgVectorStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPgVectorStore(db *gorm.DB, logger *zap.Logger) *PgVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgVectorStore{db: db, logger: logger.With(zap.String("component", "pgvector"))}
}

// vectorLiteral 将向量编码为 pgvector 字面量，如 "[0.1,0.2]"。
func vectorLiteral(embedding []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

type documentRow struct {
	ID             int64   `gorm:"column:id"`
	CaseTitle      string  `gorm:"column:case_title"`
	ReasonsSummary string  `gorm:"column:reasons_summary"`
	Reasons        string  `gorm:"column:reasons"`
	CitationNumber string  `gorm:"column:citation_number"`
	CaseTopic      string  `gorm:"column:case_topic"`
	Catchwords     string  `gorm:"column:catchwords"`
	CaseURL        string  `gorm:"column:case_url"`
	Similarity     float64 `gorm:"column:similarity"`
}

func (s *PgVectorStore) SearchDocuments(ctx context.Context, embedding []float64, limit int, topic string) ([]Result, error) {
	vec := vectorLiteral(embedding)

	query := `
		SELECT
			id,
			case_title,
			reasons_summary,
			reasons,
			citation_number,
			case_topic,
			catchwords,
			case_url,
			1 - (reasons_summary_embedding <-> CAST(? AS vector)) AS similarity
		FROM satdata`
	args := []any{vec}

	if topic != "" {
		query += ` WHERE case_topic = ?`
		args = append(args, topic)
	}

	query += `
		ORDER BY reasons_summary_embedding <-> CAST(? AS vector)
		LIMIT ?`
	args = append(args, vec, limit)

	var rows []documentRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			ID:         row.ID,
			Kind:       KindDocument,
			Title:      row.CaseTitle,
			Summary:    row.ReasonsSummary,
			Reasons:    row.Reasons,
			Citation:   row.CitationNumber,
			Topic:      row.CaseTopic,
			Catchwords: row.Catchwords,
			CaseURL:    row.CaseURL,
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

type chunkRow struct {
	ChunkID        int64   `gorm:"column:chunk_id"`
	ChunkText      string  `gorm:"column:chunk_text"`
	ChunkIndex     int     `gorm:"column:chunk_index"`
	CaseID         int64   `gorm:"column:case_id"`
	CaseTopic      string  `gorm:"column:case_topic"`
	CaseTitle      string  `gorm:"column:case_title"`
	Reasons        string  `gorm:"column:reasons"`
	CitationNumber string  `gorm:"column:citation_number"`
	CaseURL        string  `gorm:"column:case_url"`
	Similarity     float64 `gorm:"column:similarity"`
}

func (s *PgVectorStore) SearchChunks(ctx context.Context, embedding []float64, limit int, caseID int64, topic string) ([]Result, error) {
	vec := vectorLiteral(embedding)

	query := `
		SELECT
			rc.id AS chunk_id,
			rc.chunk_text,
			rc.chunk_index,
			rc.case_id,
			rc.case_topic,
			s.case_title,
			s.reasons,
			s.citation_number,
			s.case_url,
			1 - (rc.chunk_embedding <-> CAST(? AS vector)) AS similarity
		FROM reasons_chunks rc
		JOIN satdata s ON rc.case_id = s.id
		WHERE 1=1`
	args := []any{vec}

	if caseID != 0 {
		query += ` AND rc.case_id = ?`
		args = append(args, caseID)
	}
	if topic != "" {
		query += ` AND rc.case_topic = ?`
		args = append(args, topic)
	}

	query += `
		ORDER BY rc.chunk_embedding <-> CAST(? AS vector)
		LIMIT ?`
	args = append(args, vec, limit)

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			ID:         row.ChunkID,
			Kind:       KindChunk,
			CaseID:     row.CaseID,
			ChunkIndex: row.ChunkIndex,
			ChunkText:  row.ChunkText,
			Title:      row.CaseTitle,
			Reasons:    row.Reasons,
			Citation:   row.CitationNumber,
			Topic:      row.CaseTopic,
			CaseURL:    row.CaseURL,
			Similarity: row.Similarity,
		})
	}
	return results, nil
}
