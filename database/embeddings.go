package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mkardel/photoscope/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// StoredEmbedding pairs an image path with its decoded caption embedding.
type StoredEmbedding struct {
	FilePath  string
	Embedding []float32
	TakenAt   *int64
}

// AllEmbeddings returns every image that has a caption embedding, ordered by
// path so index rebuilds are deterministic. Used to warm the search index at
// startup.
func AllEmbeddings(db *sql.DB) ([]StoredEmbedding, error) {
	queryBuilder := psql.Select("file_path", "embedding", "taken_at").
		From("images").
		Where(sq.NotEq{"embedding": nil}).
		OrderBy("file_path ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for AllEmbeddings: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var results []StoredEmbedding
	for rows.Next() {
		var (
			path    string
			blob    []byte
			takenAt sql.NullInt64
		)
		if err := rows.Scan(&path, &blob, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		entry := StoredEmbedding{
			FilePath:  path,
			Embedding: models.DecodeEmbedding(blob),
		}
		if takenAt.Valid {
			ts := takenAt.Int64
			entry.TakenAt = &ts
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating embedding rows: %w", err)
	}

	return results, nil
}
