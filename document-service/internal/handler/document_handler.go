package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/document-service/internal/command"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/document-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type DocumentCommander interface {
	Upload(context.Context, cqrs.UploadDocumentCommand) (*command.UploadResult, error)
	Update(context.Context, cqrs.UpdateDocumentCommand) (*models.Document, error)
	RestoreVersion(context.Context, cqrs.RestoreVersionCommand) (*models.Document, error)
	Delete(context.Context, cqrs.DeleteDocumentCommand) error
	AddAnnotation(context.Context, cqrs.AddAnnotationCommand) (*models.DocumentAnnotation, error)
	UpdateAnnotation(context.Context, cqrs.UpdateAnnotationCommand) (*models.DocumentAnnotation, error)
	DeleteAnnotation(context.Context, cqrs.DeleteAnnotationCommand) error
}

type DocumentQuerier interface {
	ListDocuments(context.Context, cqrs.ListDocumentsQuery) (*query.DocumentPage, error)
	GetDocument(ctx context.Context, orgID, id string) (*models.DocumentDetail, error)
	Versions(ctx context.Context, orgID, id string) ([]models.DocumentVersion, error)
	Content(ctx context.Context, orgID, id string, version int) (*models.DocumentContent, error)
	Annotations(ctx context.Context, orgID, id string) ([]models.DocumentAnnotation, error)
	Stats(ctx context.Context, orgID string) (*models.DocumentStats, error)
}

// multipartOverhead leaves room for form fields and boundaries around the file.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	commands DocumentCommander
	queries  DocumentQuerier
	maxBytes int64
}

func NewDocumentHandler(commands DocumentCommander, queries DocumentQuerier, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = command.DefaultMaxBytes
	}
	return &DocumentHandler{commands: commands, queries: queries, maxBytes: maxBytes}
}

type UpdateDocumentRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=255"`
	Folder      *string   `json:"folder" validate:"omitempty,max=255"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Description *string   `json:"description" validate:"omitempty,max=1000"`
}

type AnnotationRequest struct {
	Type     string                    `json:"type" validate:"required,oneof=highlight note comment stamp"`
	Content  string                    `json:"content" validate:"required,max=5000"`
	Position models.AnnotationPosition `json:"position"`
}

type UpdateAnnotationRequest struct {
	Content  *string                    `json:"content" validate:"omitempty,min=1,max=5000"`
	Position *models.AnnotationPosition `json:"position"`
}

// Upload takes a multipart form with a "file" part. Posting to a document's
// versions adds to that document; posting to the collection versions onto a
// live document of the same name or creates one.
func (h *DocumentHandler) Upload(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.RespondWithError(c, http.StatusBadRequest, "A file is required")
		return
	}
	if file.Size > h.maxBytes {
		middleware.RespondWithError(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	f, err := file.Open()
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Unreadable file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Unreadable file")
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = file.Filename
	}
	result, err := h.commands.Upload(c.Request.Context(), cqrs.UploadDocumentCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		Name:           name,
		ContentType:    file.Header.Get("Content-Type"),
		Content:        content,
		Folder:         c.PostForm("folder"),
		Tags:           splitList(c.PostFormArray("tags")),
		Description:    c.PostForm("description"),
		ChangeLog:      c.PostForm("changeLog"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to upload document")
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	from, err := utils.ParseDate(c.Query("from"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := utils.ParseDate(c.Query("to"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid to date")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(query.DefaultPageLimit)))

	result, err := h.queries.ListDocuments(c.Request.Context(), cqrs.ListDocumentsQuery{
		OrganizationID: orgID,
		Folder:         c.Query("folder"),
		Tags:           splitList(c.QueryArray("tags")),
		Search:         c.Query("search"),
		ContentType:    c.Query("contentType"),
		From:           from,
		To:             to,
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list documents")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	doc, err := h.queries.GetDocument(c.Request.Context(), orgID, c.Param("documentId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req UpdateDocumentRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	doc, err := h.commands.Update(c.Request.Context(), cqrs.UpdateDocumentCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		Name:           req.Name,
		Folder:         req.Folder,
		Tags:           req.Tags,
		Description:    req.Description,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	err := h.commands.Delete(c.Request.Context(), cqrs.DeleteDocumentCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) Versions(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	versions, err := h.queries.Versions(c.Request.Context(), orgID, c.Param("documentId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list document versions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *DocumentHandler) RestoreVersion(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid version")
		return
	}
	doc, err := h.commands.RestoreVersion(c.Request.Context(), cqrs.RestoreVersionCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		Version:        version,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to restore document version")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Content streams a version's bytes; ?version= picks one, the default is the
// latest. The checksum doubles as the ETag.
func (h *DocumentHandler) Content(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	version := 0
	if raw := c.Query("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid version")
			return
		}
		version = v
	}
	content, err := h.queries.Content(c.Request.Context(), orgID, c.Param("documentId"), version)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get document content")
		return
	}

	etag := `"` + content.Version.Checksum + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Name}))
	c.Header("X-Document-Version", strconv.Itoa(content.Version.Version))
	c.Data(http.StatusOK, content.Version.ContentType, content.Data)
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	stats, err := h.queries.Stats(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get document statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *DocumentHandler) ListAnnotations(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	annotations, err := h.queries.Annotations(c.Request.Context(), orgID, c.Param("documentId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list annotations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": annotations})
}

func (h *DocumentHandler) AddAnnotation(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req AnnotationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	a, err := h.commands.AddAnnotation(c.Request.Context(), cqrs.AddAnnotationCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		Type:           req.Type,
		Content:        req.Content,
		Position:       req.Position,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to add annotation")
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *DocumentHandler) UpdateAnnotation(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req UpdateAnnotationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	a, err := h.commands.UpdateAnnotation(c.Request.Context(), cqrs.UpdateAnnotationCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		AnnotationID:   c.Param("annotationId"),
		Content:        req.Content,
		Position:       req.Position,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update annotation")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *DocumentHandler) DeleteAnnotation(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	err := h.commands.DeleteAnnotation(c.Request.Context(), cqrs.DeleteAnnotationCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DocumentID:     c.Param("documentId"),
		AnnotationID:   c.Param("annotationId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete annotation")
		return
	}
	c.Status(http.StatusNoContent)
}

// splitList accepts repeated fields and comma-separated values alike.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Register mounts the document routes. Uploads and edits go on writes.
func (h *DocumentHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("", h.ListDocuments)
	g.GET("/stats", h.Stats)
	g.GET("/:documentId", h.GetDocument)
	g.GET("/:documentId/versions", h.Versions)
	g.GET("/:documentId/content", h.Content)
	g.GET("/:documentId/annotations", h.ListAnnotations)

	writes.POST("", h.Upload)
	writes.PATCH("/:documentId", h.UpdateDocument)
	writes.DELETE("/:documentId", h.DeleteDocument)
	writes.POST("/:documentId/versions", h.Upload)
	writes.POST("/:documentId/versions/:version/restore", h.RestoreVersion)
	writes.POST("/:documentId/annotations", h.AddAnnotation)
	writes.PATCH("/:documentId/annotations/:annotationId", h.UpdateAnnotation)
	writes.DELETE("/:documentId/annotations/:annotationId", h.DeleteAnnotation)
}
