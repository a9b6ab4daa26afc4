package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// DocumentRepository stores documents, their versioned content and their
// annotations. Version bytes live in document_versions.content; every other
// read leaves that column alone.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, organization_id, name, description, folder, tags, latest_version, size, content_type,
	created_by, updated_by, created_at, updated_at, deleted_at`

const versionColumns = `id, document_id, version, size, content_type, checksum, change_log, is_latest, uploaded_by, uploaded_at`

func (r *DocumentRepository) Get(ctx context.Context, orgID, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("document")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// FindByName returns the organization's live document with that name.
func (r *DocumentRepository) FindByName(ctx context.Context, orgID, name string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1 AND name = $2 AND deleted_at IS NULL`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, orgID, name))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("document")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return doc, nil
}

// CreateWithVersion inserts a new document together with its first version.
func (r *DocumentRepository) CreateWithVersion(ctx context.Context, doc *models.Document, v *models.DocumentVersion, content []byte) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)
		`, doc.ID, doc.OrganizationID, doc.Name, database.NullString(doc.Description), doc.Folder, pq.Array(doc.Tags),
			v.Version, v.Size, v.ContentType, doc.CreatedBy, doc.UpdatedBy, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("document %q already exists", doc.Name)
			}
			return fmt.Errorf("failed to create document: %w", err)
		}
		return insertVersion(ctx, tx, v, content)
	})
}

// AddVersion appends a version to an existing document and makes it the
// latest. The version number is assigned here under the document row lock,
// so concurrent uploads never share one.
func (r *DocumentRepository) AddVersion(ctx context.Context, doc *models.Document, v *models.DocumentVersion, content []byte) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockDocument(ctx, tx, doc.OrganizationID, doc.ID); err != nil {
			return err
		}
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM document_versions WHERE document_id = $1`, doc.ID).Scan(&current)
		if err != nil {
			return fmt.Errorf("failed to read current version: %w", err)
		}
		v.Version = current + 1

		if _, err := tx.ExecContext(ctx,
			`UPDATE document_versions SET is_latest = FALSE WHERE document_id = $1 AND is_latest`, doc.ID); err != nil {
			return fmt.Errorf("failed to demote previous version: %w", err)
		}
		if err := insertVersion(ctx, tx, v, content); err != nil {
			return err
		}

		doc.LatestVersion, doc.Size, doc.ContentType = v.Version, v.Size, v.ContentType
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET description = $2, folder = $3, tags = $4, latest_version = $5, size = $6, content_type = $7,
			    updated_by = $8, updated_at = $9
			WHERE id = $1
		`, doc.ID, database.NullString(doc.Description), doc.Folder, pq.Array(doc.Tags),
			doc.LatestVersion, doc.Size, doc.ContentType, doc.UpdatedBy, doc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return nil
	})
}

func lockDocument(ctx context.Context, tx *sql.Tx, orgID, id string) error {
	var locked string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL FOR UPDATE`,
		id, orgID).Scan(&locked)
	if err == sql.ErrNoRows {
		return apperr.NotFound("document")
	}
	if err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, v *models.DocumentVersion, content []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_versions (`+versionColumns+`, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10)
	`, v.ID, v.DocumentID, v.Version, v.Size, v.ContentType, v.Checksum, database.NullString(v.ChangeLog),
		v.UploadedBy, v.UploadedAt, content)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("version %d already exists", v.Version)
		}
		return fmt.Errorf("failed to store document version: %w", err)
	}
	v.IsLatest = true
	return nil
}

// Update saves metadata edits. Renaming onto another live document's name
// is a conflict.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET name = $3, description = $4, folder = $5, tags = $6, updated_by = $7, updated_at = $8
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, doc.ID, doc.OrganizationID, doc.Name, database.NullString(doc.Description), doc.Folder, pq.Array(doc.Tags),
		doc.UpdatedBy, doc.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("document %q already exists", doc.Name)
		}
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("document")
	}
	return nil
}

// Restore makes an earlier version the latest again without copying it.
func (r *DocumentRepository) Restore(ctx context.Context, orgID, id string, version int, userID string, at time.Time) (*models.DocumentVersion, error) {
	var restored *models.DocumentVersion
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockDocument(ctx, tx, orgID, id); err != nil {
			return err
		}

		v, err := scanVersion(tx.QueryRowContext(ctx,
			`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 AND version = $2`, id, version))
		if err == sql.ErrNoRows {
			return apperr.NotFound("document version")
		}
		if err != nil {
			return fmt.Errorf("failed to get document version: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE document_versions SET is_latest = FALSE WHERE document_id = $1 AND is_latest`, id); err != nil {
			return fmt.Errorf("failed to demote latest version: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE document_versions SET is_latest = TRUE WHERE id = $1`, v.ID); err != nil {
			return fmt.Errorf("failed to restore version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET latest_version = $2, size = $3, content_type = $4, updated_by = $5, updated_at = $6
			WHERE id = $1
		`, id, v.Version, v.Size, v.ContentType, userID, at); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		v.IsLatest = true
		restored = v
		return nil
	})
	return restored, err
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, orgID, id, userID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents SET deleted_at = $3, updated_by = $4, updated_at = $3
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, orgID, at, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("document")
	}
	return nil
}

// PurgeDeleted drops documents soft-deleted before cutoff; versions and
// annotations go with them.
func (r *DocumentRepository) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	return result.RowsAffected()
}

// Versions lists a document's history, newest first.
func (r *DocumentRepository) Versions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 ORDER BY version DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	defer rows.Close()

	versions := []models.DocumentVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Latest returns the latest version's metadata, or nil for a document whose
// versions are gone.
func (r *DocumentRepository) Latest(ctx context.Context, documentID string) (*models.DocumentVersion, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1 AND is_latest`, documentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return v, nil
}

// Content loads a version's bytes. Version 0 means the latest.
func (r *DocumentRepository) Content(ctx context.Context, documentID string, version int) (*models.DocumentVersion, []byte, error) {
	query := `SELECT ` + versionColumns + `, content FROM document_versions WHERE document_id = $1 AND `
	args := []any{documentID}
	if version > 0 {
		query += "version = $2"
		args = append(args, version)
	} else {
		query += "is_latest"
	}

	var (
		v         models.DocumentVersion
		changeLog sql.NullString
		content   []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&v.ID, &v.DocumentID, &v.Version, &v.Size, &v.ContentType,
		&v.Checksum, &changeLog, &v.IsLatest, &v.UploadedBy, &v.UploadedAt, &content)
	if err == sql.ErrNoRows {
		return nil, nil, apperr.NotFound("document version")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document content: %w", err)
	}
	v.ChangeLog = changeLog.String
	return &v, content, nil
}

func (r *DocumentRepository) List(ctx context.Context, q cqrs.ListDocumentsQuery) ([]models.Document, int, error) {
	clauses := []string{"organization_id = $1", "deleted_at IS NULL"}
	args := []any{q.OrganizationID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args))))
	}
	if q.Folder != "" {
		add("folder = ?", q.Folder)
	}
	if len(q.Tags) > 0 {
		add("tags && ?", pq.Array(q.Tags))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%", q.Search)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR $%d = ANY(tags))",
			len(args)-1, len(args)-1, len(args)))
	}
	if q.ContentType != "" {
		add("content_type ILIKE ?", "%"+q.ContentType+"%")
	}
	if !q.From.IsZero() {
		add("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		add("created_at <= ?", q.To)
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY updated_at DESC, name LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, total, rows.Err()
}

// Stats sizes live documents by their latest version.
func (r *DocumentRepository) Stats(ctx context.Context, orgID string) (*models.DocumentStats, error) {
	stats := &models.DocumentStats{ByFolder: []models.FolderUsage{}, ByType: []models.TypeUsage{}}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(d.size), 0),
			COALESCE((SELECT COUNT(*) FROM document_versions v JOIN documents x ON x.id = v.document_id
			          WHERE x.organization_id = $1 AND x.deleted_at IS NULL), 0),
			COALESCE((SELECT COUNT(*) FROM document_annotations a JOIN documents x ON x.id = a.document_id
			          WHERE x.organization_id = $1 AND x.deleted_at IS NULL), 0)
		FROM documents d
		WHERE d.organization_id = $1 AND d.deleted_at IS NULL
	`, orgID).Scan(&stats.TotalDocuments, &stats.TotalSize, &stats.TotalVersions, &stats.TotalAnnotations)
	if err != nil {
		return nil, fmt.Errorf("failed to total documents: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT folder, COUNT(*), COALESCE(SUM(size), 0)
		FROM documents WHERE organization_id = $1 AND deleted_at IS NULL
		GROUP BY folder ORDER BY folder
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to group documents by folder: %w", err)
	}
	for rows.Next() {
		var f models.FolderUsage
		if err := rows.Scan(&f.Folder, &f.Count, &f.Size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan folder usage: %w", err)
		}
		stats.ByFolder = append(stats.ByFolder, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT split_part(content_type, '/', 1) AS family, COUNT(*)
		FROM documents WHERE organization_id = $1 AND deleted_at IS NULL AND content_type <> ''
		GROUP BY family ORDER BY family
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to group documents by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t models.TypeUsage
		if err := rows.Scan(&t.Type, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type usage: %w", err)
		}
		stats.ByType = append(stats.ByType, t)
	}
	return stats, rows.Err()
}

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var (
		doc         models.Document
		description sql.NullString
		deletedAt   sql.NullTime
	)
	err := row.Scan(&doc.ID, &doc.OrganizationID, &doc.Name, &description, &doc.Folder, pq.Array(&doc.Tags),
		&doc.LatestVersion, &doc.Size, &doc.ContentType, &doc.CreatedBy, &doc.UpdatedBy,
		&doc.CreatedAt, &doc.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	doc.Description = description.String
	doc.DeletedAt = database.TimePtr(deletedAt)
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &doc, nil
}

func scanVersion(row interface{ Scan(...any) error }) (*models.DocumentVersion, error) {
	var (
		v         models.DocumentVersion
		changeLog sql.NullString
	)
	err := row.Scan(&v.ID, &v.DocumentID, &v.Version, &v.Size, &v.ContentType, &v.Checksum, &changeLog,
		&v.IsLatest, &v.UploadedBy, &v.UploadedAt)
	if err != nil {
		return nil, err
	}
	v.ChangeLog = changeLog.String
	return &v, nil
}
