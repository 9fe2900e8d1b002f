package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, type, file_name, storage_key, detected_field, score,
       job_description, provider, model, result, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, type, file_name, storage_key, detected_field, score,
	job_description, provider, model, result, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	resultPayload, err := marshalJSONB(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		string(analysis.Type),
		nullString(analysis.FileName),
		nullString(analysis.StorageKey),
		string(analysis.DetectedField),
		analysis.Score,
		nullString(analysis.JobDescription),
		nullString(analysis.Provider),
		nullString(analysis.Model),
		resultPayload,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// ListByUser returns a page of the user's analyses, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByUser returns how many analyses a user has stored.
func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

var _ Repo = (*PGRepo)(nil)

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var analysisType string
	var detectedField string
	var fileName sql.NullString
	var storageKey sql.NullString
	var jobDescription sql.NullString
	var provider sql.NullString
	var model sql.NullString
	var result sql.NullString
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&analysisType,
		&fileName,
		&storageKey,
		&detectedField,
		&a.Score,
		&jobDescription,
		&provider,
		&model,
		&result,
		&a.CreatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Type = AnalysisType(analysisType)
	a.DetectedField = DetectedField(detectedField)
	a.FileName = fileName.String
	a.StorageKey = storageKey.String
	a.JobDescription = jobDescription.String
	a.Provider = provider.String
	a.Model = model.String
	if result.Valid {
		a.Result = map[string]any{}
		if err := json.Unmarshal([]byte(result.String), &a.Result); err != nil {
			a.Result = nil
		}
	}
	return a, nil
}

func marshalJSONB(value map[string]any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
