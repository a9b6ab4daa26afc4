package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

const annotationColumns = `id, document_id, user_id, type, content, position, created_at, updated_at`

// Annotations are addressed through their document; callers check the
// document belongs to the tenant first.

func (r *DocumentRepository) CreateAnnotation(ctx context.Context, a *models.DocumentAnnotation) error {
	position, err := json.Marshal(a.Position)
	if err != nil {
		return fmt.Errorf("failed to encode annotation position: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO document_annotations (`+annotationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.DocumentID, a.UserID, a.Type, a.Content, position, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("document")
		}
		return fmt.Errorf("failed to create annotation: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetAnnotation(ctx context.Context, documentID, id string) (*models.DocumentAnnotation, error) {
	a, err := scanAnnotation(r.db.QueryRowContext(ctx,
		`SELECT `+annotationColumns+` FROM document_annotations WHERE id = $1 AND document_id = $2`, id, documentID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("annotation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return a, nil
}

// Annotations lists a document's annotations, oldest first.
func (r *DocumentRepository) Annotations(ctx context.Context, documentID string) ([]models.DocumentAnnotation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+annotationColumns+` FROM document_annotations WHERE document_id = $1 ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	annotations := []models.DocumentAnnotation{}
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		annotations = append(annotations, *a)
	}
	return annotations, rows.Err()
}

func (r *DocumentRepository) UpdateAnnotation(ctx context.Context, a *models.DocumentAnnotation) error {
	position, err := json.Marshal(a.Position)
	if err != nil {
		return fmt.Errorf("failed to encode annotation position: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE document_annotations SET content = $4, position = $5, updated_at = $6
		WHERE id = $1 AND document_id = $2 AND user_id = $3
	`, a.ID, a.DocumentID, a.UserID, a.Content, position, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("annotation")
	}
	return nil
}

// DeleteAnnotation removes the annotation only when userID wrote it.
func (r *DocumentRepository) DeleteAnnotation(ctx context.Context, documentID, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM document_annotations WHERE id = $1 AND document_id = $2 AND user_id = $3`, id, documentID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("annotation")
	}
	return nil
}

func scanAnnotation(row interface{ Scan(...any) error }) (*models.DocumentAnnotation, error) {
	var (
		a        models.DocumentAnnotation
		position []byte
	)
	if err := row.Scan(&a.ID, &a.DocumentID, &a.UserID, &a.Type, &a.Content, &position, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(position, &a.Position); err != nil {
		return nil, fmt.Errorf("failed to decode annotation position: %w", err)
	}
	return &a, nil
}
