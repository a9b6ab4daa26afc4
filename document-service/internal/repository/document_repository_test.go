package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

var at = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

var documentCols = []string{"id", "organization_id", "name", "description", "folder", "tags", "latest_version", "size",
	"content_type", "created_by", "updated_by", "created_at", "updated_at", "deleted_at"}

var versionCols = []string{"id", "document_id", "version", "size", "content_type", "checksum", "change_log", "is_latest",
	"uploaded_by", "uploaded_at"}

const lockQuery = "SELECT id FROM documents WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL FOR UPDATE"

func newMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentRepository(db), mock
}

func TestAddVersionTakesNextNumber(t *testing.T) {
	repo, mock := newMock(t)
	doc := &models.Document{ID: "doc-1", OrganizationID: "org-001", Folder: "contracts", Tags: []string{"lease"}, UpdatedBy: "usr-1", UpdatedAt: at}
	v := &models.DocumentVersion{ID: "dvr-3", DocumentID: "doc-1", Size: 7, ContentType: "application/pdf", Checksum: "abc", UploadedBy: "usr-1", UploadedAt: at}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs("doc-1", "org-001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM document_versions WHERE document_id = $1")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_versions SET is_latest = FALSE WHERE document_id = $1 AND is_latest")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_versions")).
		WithArgs("dvr-3", "doc-1", 3, int64(7), "application/pdf", "abc", sqlmock.AnyArg(), "usr-1", at, []byte("content")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents")).
		WithArgs("doc-1", sqlmock.AnyArg(), "contracts", sqlmock.AnyArg(), 3, int64(7), "application/pdf", "usr-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AddVersion(context.Background(), doc, v, []byte("content")))
	assert.Equal(t, 3, v.Version)
	assert.True(t, v.IsLatest)
	assert.Equal(t, 3, doc.LatestVersion)
	assert.Equal(t, int64(7), doc.Size)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddVersionToDeletedDocument(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs("doc-1", "org-001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.AddVersion(context.Background(), &models.Document{ID: "doc-1", OrganizationID: "org-001"}, &models.DocumentVersion{}, []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithVersionDuplicateName(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithVersion(context.Background(),
		&models.Document{ID: "doc-2", OrganizationID: "org-001", Name: "lease.pdf"},
		&models.DocumentVersion{ID: "dvr-1", DocumentID: "doc-2", Version: 1}, []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreUnknownVersion(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs("doc-1", "org-001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_versions WHERE document_id = $1 AND version = $2")).
		WithArgs("doc-1", 5).
		WillReturnRows(sqlmock.NewRows(versionCols))
	mock.ExpectRollback()

	_, err := repo.Restore(context.Background(), "org-001", "doc-1", 5, "usr-1", at)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "document version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestorePromotesVersion(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs("doc-1", "org-001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_versions WHERE document_id = $1 AND version = $2")).
		WithArgs("doc-1", 1).
		WillReturnRows(sqlmock.NewRows(versionCols).
			AddRow("dvr-1", "doc-1", 1, int64(3), "text/plain", "sum", nil, false, "usr-1", at))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_versions SET is_latest = FALSE")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_versions SET is_latest = TRUE WHERE id = $1")).
		WithArgs("dvr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET latest_version = $2")).
		WithArgs("doc-1", 1, int64(3), "text/plain", "usr-2", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := repo.Restore(context.Background(), "org-001", "doc-1", 1, "usr-2", at)
	require.NoError(t, err)
	assert.Equal(t, "dvr-1", v.ID)
	assert.True(t, v.IsLatest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteMissing(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted_at = $3")).
		WithArgs("doc-1", "org-001", at, "usr-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "org-001", "doc-1", "usr-1", at)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	repo, mock := newMock(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where := "organization_id = $1 AND deleted_at IS NULL AND folder = $2 AND tags && $3 AND " +
		"(name ILIKE $4 OR description ILIKE $4 OR $5 = ANY(tags)) AND created_at >= $6"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE "+where)).
		WithArgs("org-001", "tax", sqlmock.AnyArg(), "%acme%", "acme", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(where+" ORDER BY updated_at DESC, name LIMIT $7 OFFSET $8")).
		WithArgs("org-001", "tax", sqlmock.AnyArg(), "%acme%", "acme", from, 10, 10).
		WillReturnRows(sqlmock.NewRows(documentCols).
			AddRow("doc-1", "org-001", "acme-w9.pdf", nil, "tax", "{w9,acme}", 2, int64(1024), "application/pdf",
				"usr-1", "usr-1", at, at, nil))

	docs, total, err := repo.List(context.Background(), cqrs.ListDocumentsQuery{
		OrganizationID: "org-001",
		Folder:         "tax",
		Tags:           []string{"w9"},
		Search:         "acme",
		From:           from,
		Page:           2,
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"w9", "acme"}, docs[0].Tags)
	assert.Empty(t, docs[0].Description)
	assert.Nil(t, docs[0].DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentDefaultsToLatest(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM document_versions WHERE document_id = $1 AND is_latest")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(append(versionCols, "content")).
			AddRow("dvr-2", "doc-1", 2, int64(5), "text/plain", "sum", "fixed typo", true, "usr-1", at, []byte("hello")))

	v, data, err := repo.Content(context.Background(), "doc-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, "fixed typo", v.ChangeLog)
	assert.Equal(t, "hello", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("AND version = $2")).
		WithArgs("doc-1", 9).
		WillReturnRows(sqlmock.NewRows(append(versionCols, "content")))
	_, _, err = repo.Content(context.Background(), "doc-1", 9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateAnnotationForMissingDocument(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_annotations")).
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.CreateAnnotation(context.Background(), &models.DocumentAnnotation{
		ID: "ann-1", DocumentID: "doc-404", UserID: "usr-1", Type: models.AnnotationNote,
		Position: models.AnnotationPosition{Page: 1}, CreatedAt: at, UpdatedAt: at,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
