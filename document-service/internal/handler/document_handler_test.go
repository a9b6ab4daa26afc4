package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/document-service/internal/command"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/document-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---- mock implementations ----

type mockCommander struct {
	uploadFn  func(cqrs.UploadDocumentCommand) (*command.UploadResult, error)
	restoreFn func(cqrs.RestoreVersionCommand) (*models.Document, error)
	lastAdd   cqrs.AddAnnotationCommand
}

func (m *mockCommander) Upload(_ context.Context, cmd cqrs.UploadDocumentCommand) (*command.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCommander) Update(_ context.Context, cmd cqrs.UpdateDocumentCommand) (*models.Document, error) {
	if cmd.DocumentID != "doc-001" {
		return nil, apperr.NotFound("document")
	}
	doc := &models.Document{ID: cmd.DocumentID}
	if cmd.Name != nil {
		doc.Name = *cmd.Name
	}
	return doc, nil
}
func (m *mockCommander) RestoreVersion(_ context.Context, cmd cqrs.RestoreVersionCommand) (*models.Document, error) {
	if m.restoreFn != nil {
		return m.restoreFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCommander) Delete(_ context.Context, cmd cqrs.DeleteDocumentCommand) error {
	if cmd.DocumentID != "doc-001" {
		return apperr.NotFound("document")
	}
	return nil
}
func (m *mockCommander) AddAnnotation(_ context.Context, cmd cqrs.AddAnnotationCommand) (*models.DocumentAnnotation, error) {
	m.lastAdd = cmd
	return &models.DocumentAnnotation{ID: "ann-001", DocumentID: cmd.DocumentID, Type: cmd.Type, Position: cmd.Position}, nil
}
func (m *mockCommander) UpdateAnnotation(_ context.Context, cmd cqrs.UpdateAnnotationCommand) (*models.DocumentAnnotation, error) {
	return nil, apperr.NotFound("annotation")
}
func (m *mockCommander) DeleteAnnotation(_ context.Context, cmd cqrs.DeleteAnnotationCommand) error {
	return nil
}

type mockQuerier struct {
	lastList  cqrs.ListDocumentsQuery
	contentFn func(id string, version int) (*models.DocumentContent, error)
}

func (m *mockQuerier) ListDocuments(_ context.Context, q cqrs.ListDocumentsQuery) (*query.DocumentPage, error) {
	m.lastList = q
	return &query.DocumentPage{Documents: []models.Document{}, Pagination: models.NewPagination(q.Page, q.Limit, 0)}, nil
}
func (m *mockQuerier) GetDocument(_ context.Context, orgID, id string) (*models.DocumentDetail, error) {
	if id != "doc-001" {
		return nil, apperr.NotFound("document")
	}
	return &models.DocumentDetail{Document: models.Document{ID: id, Name: "lease.pdf"}, Annotations: []models.DocumentAnnotation{}}, nil
}
func (m *mockQuerier) Versions(_ context.Context, orgID, id string) ([]models.DocumentVersion, error) {
	return []models.DocumentVersion{{Version: 2, IsLatest: true}, {Version: 1}}, nil
}
func (m *mockQuerier) Content(_ context.Context, orgID, id string, version int) (*models.DocumentContent, error) {
	if m.contentFn != nil {
		return m.contentFn(id, version)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockQuerier) Annotations(_ context.Context, orgID, id string) ([]models.DocumentAnnotation, error) {
	return []models.DocumentAnnotation{}, nil
}
func (m *mockQuerier) Stats(_ context.Context, orgID string) (*models.DocumentStats, error) {
	return &models.DocumentStats{TotalDocuments: 3}, nil
}

// ---- helpers ----

func fakeAuth(c *gin.Context) {
	c.Set("userId", "usr-001")
	c.Set("organizationId", "org-001")
	c.Set("role", "member")
	c.Next()
}

func newTestRouter(cmds *mockCommander, q *mockQuerier, maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth)
	docs := r.Group("/v1/documents")
	NewDocumentHandler(cmds, q, maxBytes).Register(docs, docs)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type filePart struct {
	filename    string
	contentType string
	data        string
}

func multipartRequest(t *testing.T, url string, file *filePart, fields map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.filename))
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ---- tests ----

func TestUpload(t *testing.T) {
	pdf := &filePart{filename: "scan.pdf", contentType: "application/pdf", data: "%PDF-1.7 body"}

	tests := []struct {
		name       string
		url        string
		file       *filePart
		fields     map[string][]string
		uploadErr  error
		created    bool
		wantStatus int
		check      func(*testing.T, cqrs.UploadDocumentCommand)
	}{
		{
			name:       "new document",
			url:        "/v1/documents",
			file:       pdf,
			fields:     map[string][]string{"name": {"lease.pdf"}, "folder": {"contracts"}, "tags": {"lease,office", "signed"}, "changeLog": {"first"}},
			created:    true,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, cmd cqrs.UploadDocumentCommand) {
				assert.Equal(t, "org-001", cmd.OrganizationID)
				assert.Equal(t, "usr-001", cmd.UserID)
				assert.Empty(t, cmd.DocumentID)
				assert.Equal(t, "lease.pdf", cmd.Name)
				assert.Equal(t, "application/pdf", cmd.ContentType)
				assert.Equal(t, "%PDF-1.7 body", string(cmd.Content))
				assert.Equal(t, "contracts", cmd.Folder)
				assert.Equal(t, []string{"lease", "office", "signed"}, cmd.Tags)
				assert.Equal(t, "first", cmd.ChangeLog)
			},
		},
		{
			name:       "new version of a document",
			url:        "/v1/documents/doc-001/versions",
			file:       pdf,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, cmd cqrs.UploadDocumentCommand) {
				assert.Equal(t, "doc-001", cmd.DocumentID)
				assert.Equal(t, "scan.pdf", cmd.Name, "falls back to the file name")
			},
		},
		{name: "missing file", url: "/v1/documents", fields: map[string][]string{"name": {"x.pdf"}}, wantStatus: http.StatusBadRequest},
		{
			name:       "file over the limit",
			url:        "/v1/documents",
			file:       &filePart{filename: "big.pdf", contentType: "application/pdf", data: strings.Repeat("x", 65)},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{name: "rejected type", url: "/v1/documents", file: pdf, uploadErr: apperr.Invalid("file type application/x-sh is not allowed"), wantStatus: http.StatusBadRequest},
		{name: "unknown document", url: "/v1/documents/doc-404/versions", file: pdf, uploadErr: apperr.NotFound("document"), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *cqrs.UploadDocumentCommand
			cmds := &mockCommander{uploadFn: func(cmd cqrs.UploadDocumentCommand) (*command.UploadResult, error) {
				got = &cmd
				if tt.uploadErr != nil {
					return nil, tt.uploadErr
				}
				return &command.UploadResult{
					Document: &models.Document{ID: "doc-001", Name: cmd.Name},
					Version:  &models.DocumentVersion{Version: 1},
					Created:  tt.created,
				}, nil
			}}
			router := newTestRouter(cmds, &mockQuerier{}, 64)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, tt.url, tt.file, tt.fields))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				require.NotNil(t, got)
				tt.check(t, *got)
			}
			if tt.wantStatus == http.StatusRequestEntityTooLarge || tt.file == nil {
				assert.Nil(t, got, "upload must not reach the service")
			}
		})
	}
}

func TestContent(t *testing.T) {
	q := &mockQuerier{contentFn: func(id string, version int) (*models.DocumentContent, error) {
		if id != "doc-001" {
			return nil, apperr.NotFound("document")
		}
		if version == 0 {
			version = 2
		}
		if version > 2 {
			return nil, apperr.NotFound("document version")
		}
		return &models.DocumentContent{
			Name:    "Q1 report.pdf",
			Version: models.DocumentVersion{Version: version, ContentType: "application/pdf", Checksum: fmt.Sprintf("sum-%d", version)},
			Data:    []byte("pdf-bytes"),
		}, nil
	}}
	router := newTestRouter(&mockCommander{}, q, 0)

	w := doRequest(router, http.MethodGet, "/v1/documents/doc-001/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `"sum-2"`, w.Header().Get("ETag"))
	assert.Equal(t, "2", w.Header().Get("X-Document-Version"))
	assert.Equal(t, `attachment; filename="Q1 report.pdf"`, w.Header().Get("Content-Disposition"))

	w = doRequest(router, http.MethodGet, "/v1/documents/doc-001/content?version=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Document-Version"))

	req, _ := http.NewRequest(http.MethodGet, "/v1/documents/doc-001/content", nil)
	req.Header.Set("If-None-Match", `"sum-2"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/documents/doc-001/content?version=zero", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/documents/doc-001/content?version=7", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/documents/doc-404/content", nil).Code)
}

func TestRestoreVersion(t *testing.T) {
	cmds := &mockCommander{restoreFn: func(cmd cqrs.RestoreVersionCommand) (*models.Document, error) {
		if cmd.Version > 3 {
			return nil, apperr.NotFound("document version")
		}
		return &models.Document{ID: cmd.DocumentID, LatestVersion: cmd.Version}, nil
	}}
	router := newTestRouter(cmds, &mockQuerier{}, 0)

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"restores", "/v1/documents/doc-001/versions/2/restore", http.StatusOK},
		{"not a number", "/v1/documents/doc-001/versions/latest/restore", http.StatusBadRequest},
		{"zero", "/v1/documents/doc-001/versions/0/restore", http.StatusBadRequest},
		{"unknown version", "/v1/documents/doc-001/versions/9/restore", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, tt.url, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestListDocumentsParsesFilters(t *testing.T) {
	q := &mockQuerier{}
	router := newTestRouter(&mockCommander{}, q, 0)

	w := doRequest(router, http.MethodGet, "/v1/documents?folder=tax&tags=w2,1099&tags=2025&search=acme&contentType=application/pdf&from=2025-01-01&to=2025-12-31&page=2&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "org-001", q.lastList.OrganizationID)
	assert.Equal(t, "tax", q.lastList.Folder)
	assert.Equal(t, []string{"w2", "1099", "2025"}, q.lastList.Tags)
	assert.Equal(t, "acme", q.lastList.Search)
	assert.Equal(t, "application/pdf", q.lastList.ContentType)
	assert.Equal(t, 2025, q.lastList.From.Year())
	assert.Equal(t, 12, int(q.lastList.To.Month()))
	assert.Equal(t, 2, q.lastList.Page)
	assert.Equal(t, 10, q.lastList.Limit)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/documents?from=yesterday", nil).Code)
}

func TestDocumentAndAnnotationRoutes(t *testing.T) {
	cmds := &mockCommander{}
	router := newTestRouter(cmds, &mockQuerier{}, 0)

	tests := []struct {
		name       string
		method     string
		url        string
		body       any
		wantStatus int
	}{
		{"get document", http.MethodGet, "/v1/documents/doc-001", nil, http.StatusOK},
		{"get missing document", http.MethodGet, "/v1/documents/doc-404", nil, http.StatusNotFound},
		{"rename", http.MethodPatch, "/v1/documents/doc-001", map[string]any{"name": "renamed.pdf"}, http.StatusOK},
		{"rename to empty", http.MethodPatch, "/v1/documents/doc-001", map[string]any{"name": ""}, http.StatusBadRequest},
		{"delete", http.MethodDelete, "/v1/documents/doc-001", nil, http.StatusNoContent},
		{"delete missing", http.MethodDelete, "/v1/documents/doc-404", nil, http.StatusNotFound},
		{"versions", http.MethodGet, "/v1/documents/doc-001/versions", nil, http.StatusOK},
		{"stats", http.MethodGet, "/v1/documents/stats", nil, http.StatusOK},
		{"annotate", http.MethodPost, "/v1/documents/doc-001/annotations",
			map[string]any{"type": "note", "content": "check total", "position": map[string]any{"page": 1, "x": 12.5, "y": 40}}, http.StatusCreated},
		{"annotate with unknown type", http.MethodPost, "/v1/documents/doc-001/annotations",
			map[string]any{"type": "scribble", "content": "x", "position": map[string]any{"page": 1}}, http.StatusBadRequest},
		{"edit someone else's annotation", http.MethodPatch, "/v1/documents/doc-001/annotations/ann-9", map[string]any{"content": "mine now"}, http.StatusNotFound},
		{"delete annotation", http.MethodDelete, "/v1/documents/doc-001/annotations/ann-001", nil, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, "doc-001", cmds.lastAdd.DocumentID)
	assert.Equal(t, 12.5, cmds.lastAdd.Position.X)
}

func TestRegisterKeepsMutationsOnWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth)
	docs := r.Group("/v1/documents")
	denied := docs.Group("", func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) })
	NewDocumentHandler(&mockCommander{}, &mockQuerier{}, 0).Register(docs, denied)

	mounted := map[string]bool{}
	for _, route := range r.Routes() {
		mounted[route.Method+" "+route.Path] = true
	}
	want := []string{
		"GET /v1/documents",
		"GET /v1/documents/stats",
		"GET /v1/documents/:documentId",
		"GET /v1/documents/:documentId/versions",
		"GET /v1/documents/:documentId/content",
		"GET /v1/documents/:documentId/annotations",
		"POST /v1/documents",
		"PATCH /v1/documents/:documentId",
		"DELETE /v1/documents/:documentId",
		"POST /v1/documents/:documentId/versions",
		"POST /v1/documents/:documentId/versions/:version/restore",
		"POST /v1/documents/:documentId/annotations",
		"PATCH /v1/documents/:documentId/annotations/:annotationId",
		"DELETE /v1/documents/:documentId/annotations/:annotationId",
	}
	assert.Len(t, mounted, len(want))
	for _, key := range want {
		assert.True(t, mounted[key], "route %s not mounted", key)
	}

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/v1/documents/doc-001", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodDelete, "/v1/documents/doc-001", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodPost, "/v1/documents/doc-001/versions/1/restore", nil).Code)
}
