package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/predicate"
	"github.com/poiesic/ontoquery/storage"
)

var _ storage.DocumentStore = (*Store)(nil)

const upsertDocumentSQL = `INSERT OR REPLACE INTO documents
    (sop_instance_uid, series_instance_uid, study_instance_uid, content_date,
     modalities, concepts, pref_text, annotations, doc)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AddDocuments inserts or replaces documents in one transaction.
func (s *Store) AddDocuments(ctx context.Context, docs ...*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		args, err := documentArgs(doc)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.SOPInstanceUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit documents: %w", err)
	}
	s.logger.Debug("stored documents", "count", len(docs))
	return nil
}

// documentArgs derives the indexed columns from a document.
func documentArgs(doc *core.Document) ([]any, error) {
	if doc == nil || doc.SOPInstanceUID == "" {
		return nil, fmt.Errorf("%w: document has no %s", storage.ErrInvalidQuery, core.FieldSOPInstanceUID)
	}
	modalities, err := jsonArray(doc.Modalities)
	if err != nil {
		return nil, err
	}
	concepts, err := jsonArray(doc.ConceptIDs())
	if err != nil {
		return nil, err
	}
	annotations := doc.Annotations
	if annotations == nil {
		annotations = []core.Annotation{}
	}
	annJSON, err := json.Marshal(annotations)
	if err != nil {
		return nil, fmt.Errorf("%w: annotations: %w", storage.ErrSerializationFailed, err)
	}
	raw := doc.Raw
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: document %s has no body", storage.ErrInvalidQuery, doc.SOPInstanceUID)
	}
	return []any{
		doc.SOPInstanceUID,
		doc.SeriesInstanceUID,
		doc.StudyInstanceUID,
		doc.ContentDate,
		modalities,
		concepts,
		predicate.IndexText(doc.PreferredLabels()),
		string(annJSON),
		string(raw),
	}, nil
}

func jsonArray(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return string(data), nil
}

// GetDocument retrieves one document by SOPInstanceUID.
func (s *Store) GetDocument(ctx context.Context, sopInstanceUID string) (*core.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM documents WHERE sop_instance_uid = ?", sopInstanceUID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", sopInstanceUID, err)
	}
	return core.ParseDocument([]byte(raw))
}

// Execute runs a compiled query. Each returned row holds one value per
// projected field: string, int64, float64, or nil for missing fields.
// Array and object fields are returned as their JSON text.
func (s *Store) Execute(ctx context.Context, q *predicate.CompiledQuery, page *storage.Page) ([][]any, error) {
	query, params, err := Compile(q, page)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("executing query", "sql", query, "params", len(params))

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, len(q.Fields))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}
