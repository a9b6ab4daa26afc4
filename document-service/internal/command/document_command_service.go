package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// DocumentStore is repository.DocumentRepository.
type DocumentStore interface {
	Get(ctx context.Context, orgID, id string) (*models.Document, error)
	FindByName(ctx context.Context, orgID, name string) (*models.Document, error)
	CreateWithVersion(ctx context.Context, doc *models.Document, v *models.DocumentVersion, content []byte) error
	AddVersion(ctx context.Context, doc *models.Document, v *models.DocumentVersion, content []byte) error
	Update(ctx context.Context, doc *models.Document) error
	Restore(ctx context.Context, orgID, id string, version int, userID string, at time.Time) (*models.DocumentVersion, error)
	SoftDelete(ctx context.Context, orgID, id, userID string, at time.Time) error
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)

	CreateAnnotation(ctx context.Context, a *models.DocumentAnnotation) error
	GetAnnotation(ctx context.Context, documentID, id string) (*models.DocumentAnnotation, error)
	UpdateAnnotation(ctx context.Context, a *models.DocumentAnnotation) error
	DeleteAnnotation(ctx context.Context, documentID, id, userID string) error
}

const (
	DefaultMaxBytes  = 50 << 20
	DefaultRetention = 30 * 24 * time.Hour
	maxNameLength    = 255
	maxTags          = 20
)

// Policy bounds what an upload may carry and how long deleted documents are
// kept before they are purged.
type Policy struct {
	MaxBytes     int64
	AllowedTypes map[string]bool
	Retention    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxBytes: DefaultMaxBytes,
		AllowedTypes: map[string]bool{
			"image/jpeg":         true,
			"image/png":          true,
			"image/gif":          true,
			"image/webp":         true,
			"application/pdf":    true,
			"text/plain":         true,
			"text/csv":           true,
			"application/msword": true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
			"application/vnd.ms-excel": true,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
		},
		Retention: DefaultRetention,
	}
}

// extensionTypes covers clients that upload as application/octet-stream.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type DocumentCommandService struct {
	store     DocumentStore
	publisher events.Emitter
	policy    Policy
	logger    *zap.Logger
	now       func() time.Time
}

func NewDocumentCommandService(store DocumentStore, publisher events.Emitter, policy Policy, logger *zap.Logger) *DocumentCommandService {
	return &DocumentCommandService{store: store, publisher: publisher, policy: policy, logger: logger, now: time.Now}
}

// UploadResult reports the stored version and whether the upload created
// the document.
type UploadResult struct {
	Document *models.Document        `json:"document"`
	Version  *models.DocumentVersion `json:"version"`
	Created  bool                    `json:"created"`
}

// Upload stores a new version. Without a document id it lands on the live
// document of the same name, or creates one at version 1.
func (s *DocumentCommandService) Upload(ctx context.Context, cmd cqrs.UploadDocumentCommand) (*UploadResult, error) {
	name, err := cleanName(cmd.Name)
	if err != nil {
		return nil, err
	}
	if len(cmd.Content) == 0 {
		return nil, apperr.Invalid("file is empty")
	}
	if s.policy.MaxBytes > 0 && int64(len(cmd.Content)) > s.policy.MaxBytes {
		return nil, apperr.Invalid("file exceeds the %d byte limit", s.policy.MaxBytes)
	}
	contentType := detectContentType(name, cmd.ContentType, cmd.Content)
	if !s.policy.AllowedTypes[contentType] {
		return nil, apperr.Invalid("file type %s is not allowed", contentType)
	}
	tags, err := cleanTags(cmd.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sum := sha256.Sum256(cmd.Content)
	version := &models.DocumentVersion{
		ID:          utils.GenerateID("dvr"),
		Size:        int64(len(cmd.Content)),
		ContentType: contentType,
		Checksum:    hex.EncodeToString(sum[:]),
		ChangeLog:   strings.TrimSpace(cmd.ChangeLog),
		UploadedBy:  cmd.UserID,
		UploadedAt:  now,
	}

	doc, err := s.target(ctx, cmd.OrganizationID, cmd.DocumentID, name)
	if err != nil {
		return nil, err
	}
	created := doc == nil
	if created {
		doc = &models.Document{
			ID:             utils.GenerateID("doc"),
			OrganizationID: cmd.OrganizationID,
			Name:           name,
			Description:    strings.TrimSpace(cmd.Description),
			Folder:         cleanFolder(cmd.Folder),
			Tags:           tags,
			LatestVersion:  1,
			Size:           version.Size,
			ContentType:    contentType,
			CreatedBy:      cmd.UserID,
			UpdatedBy:      cmd.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		version.DocumentID, version.Version = doc.ID, 1
		err = s.store.CreateWithVersion(ctx, doc, version, cmd.Content)
		if errors.Is(err, apperr.ErrConflict) {
			// Another upload created the name first; version onto it instead.
			doc, err = s.store.FindByName(ctx, cmd.OrganizationID, name)
			if err != nil {
				return nil, err
			}
			created = false
		} else if err != nil {
			return nil, err
		}
	}
	if !created {
		mergeUploadMetadata(doc, cmd, tags)
		doc.UpdatedBy, doc.UpdatedAt = cmd.UserID, now
		version.DocumentID = doc.ID
		if err := s.store.AddVersion(ctx, doc, version, cmd.Content); err != nil {
			return nil, err
		}
	}

	metrics.RecordDocumentUpload(contentType, version.Size)
	s.logger.Info("document version stored",
		zap.String("documentId", doc.ID),
		zap.String("organizationId", doc.OrganizationID),
		zap.Int("version", version.Version),
		zap.Int64("size", version.Size),
	)
	s.publish(ctx, events.DocumentUploaded, doc, cmd.UserID)
	return &UploadResult{Document: doc, Version: version, Created: created}, nil
}

// target resolves the document an upload versions onto; nil means create.
func (s *DocumentCommandService) target(ctx context.Context, orgID, documentID, name string) (*models.Document, error) {
	if documentID != "" {
		return s.store.Get(ctx, orgID, documentID)
	}
	doc, err := s.store.FindByName(ctx, orgID, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func mergeUploadMetadata(doc *models.Document, cmd cqrs.UploadDocumentCommand, tags []string) {
	if strings.TrimSpace(cmd.Folder) != "" {
		doc.Folder = cleanFolder(cmd.Folder)
	}
	if len(tags) > 0 {
		doc.Tags = tags
	}
	if d := strings.TrimSpace(cmd.Description); d != "" {
		doc.Description = d
	}
}

func (s *DocumentCommandService) Update(ctx context.Context, cmd cqrs.UpdateDocumentCommand) (*models.Document, error) {
	doc, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		if doc.Name, err = cleanName(*cmd.Name); err != nil {
			return nil, err
		}
	}
	if cmd.Folder != nil {
		doc.Folder = cleanFolder(*cmd.Folder)
	}
	if cmd.Tags != nil {
		if doc.Tags, err = cleanTags(*cmd.Tags); err != nil {
			return nil, err
		}
	}
	if cmd.Description != nil {
		doc.Description = strings.TrimSpace(*cmd.Description)
	}
	doc.UpdatedBy, doc.UpdatedAt = cmd.UserID, s.now().UTC()
	if err := s.store.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.publish(ctx, events.DocumentUpdated, doc, cmd.UserID)
	return doc, nil
}

// RestoreVersion makes an earlier version the one served by default.
func (s *DocumentCommandService) RestoreVersion(ctx context.Context, cmd cqrs.RestoreVersionCommand) (*models.Document, error) {
	if cmd.Version < 1 {
		return nil, apperr.Invalid("version must be positive")
	}
	if _, err := s.store.Restore(ctx, cmd.OrganizationID, cmd.DocumentID, cmd.Version, cmd.UserID, s.now().UTC()); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document version restored", zap.String("documentId", doc.ID), zap.Int("version", cmd.Version))
	s.publish(ctx, events.DocumentVersionRestored, doc, cmd.UserID)
	return doc, nil
}

// Delete hides the document at once; PurgeDeleted removes it for good after
// the retention window.
func (s *DocumentCommandService) Delete(ctx context.Context, cmd cqrs.DeleteDocumentCommand) error {
	doc, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID)
	if err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, cmd.OrganizationID, cmd.DocumentID, cmd.UserID, s.now().UTC()); err != nil {
		return err
	}
	s.publish(ctx, events.DocumentDeleted, doc, cmd.UserID)
	return nil
}

func (s *DocumentCommandService) PurgeDeleted(ctx context.Context) error {
	retention := s.policy.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	n, err := s.store.PurgeDeleted(ctx, s.now().UTC().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged deleted documents", zap.Int64("count", n))
	}
	return nil
}

var annotationTypes = map[string]bool{
	models.AnnotationHighlight: true,
	models.AnnotationNote:      true,
	models.AnnotationComment:   true,
	models.AnnotationStamp:     true,
}

func (s *DocumentCommandService) AddAnnotation(ctx context.Context, cmd cqrs.AddAnnotationCommand) (*models.DocumentAnnotation, error) {
	if !annotationTypes[cmd.Type] {
		return nil, apperr.Invalid("unknown annotation type %q", cmd.Type)
	}
	if err := validatePosition(cmd.Position); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &models.DocumentAnnotation{
		ID:         utils.GenerateID("ann"),
		DocumentID: cmd.DocumentID,
		UserID:     cmd.UserID,
		Type:       cmd.Type,
		Content:    strings.TrimSpace(cmd.Content),
		Position:   cmd.Position,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateAnnotation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAnnotation edits the caller's own annotation; anyone else's reads as
// missing.
func (s *DocumentCommandService) UpdateAnnotation(ctx context.Context, cmd cqrs.UpdateAnnotationCommand) (*models.DocumentAnnotation, error) {
	if _, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID); err != nil {
		return nil, err
	}
	a, err := s.store.GetAnnotation(ctx, cmd.DocumentID, cmd.AnnotationID)
	if err != nil {
		return nil, err
	}
	if a.UserID != cmd.UserID {
		return nil, apperr.NotFound("annotation")
	}
	if cmd.Content != nil {
		a.Content = strings.TrimSpace(*cmd.Content)
	}
	if cmd.Position != nil {
		if err := validatePosition(*cmd.Position); err != nil {
			return nil, err
		}
		a.Position = *cmd.Position
	}
	a.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAnnotation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *DocumentCommandService) DeleteAnnotation(ctx context.Context, cmd cqrs.DeleteAnnotationCommand) error {
	if _, err := s.store.Get(ctx, cmd.OrganizationID, cmd.DocumentID); err != nil {
		return err
	}
	return s.store.DeleteAnnotation(ctx, cmd.DocumentID, cmd.AnnotationID, cmd.UserID)
}

func (s *DocumentCommandService) publish(ctx context.Context, eventType string, doc *models.Document, userID string) {
	err := s.publisher.Publish(ctx, events.DocumentEventsStream, eventType, events.DocumentEvent{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
		UserID:         userID,
		Name:           doc.Name,
		Folder:         doc.Folder,
		Tags:           doc.Tags,
		Version:        doc.LatestVersion,
		Size:           doc.Size,
		ContentType:    doc.ContentType,
	})
	if err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.String("documentId", doc.ID), zap.Error(err))
	}
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.Invalid("name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", apperr.Invalid("name must not contain a path")
	}
	if len(name) > maxNameLength {
		return "", apperr.Invalid("name must be at most %d bytes", maxNameLength)
	}
	return name, nil
}

// cleanFolder trims slashes and spaces from each segment; empty means the
// default folder.
func cleanFolder(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, "/") {
		if p = strings.TrimSpace(p); p != "" && p != "." && p != ".." {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return models.DefaultDocumentFolder
	}
	return strings.Join(parts, "/")
}

// cleanTags lowercases, trims and de-duplicates, keeping first-seen order.
func cleanTags(raw []string) ([]string, error) {
	tags := []string{}
	seen := map[string]bool{}
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > maxTags {
		return nil, apperr.Invalid("at most %d tags are allowed", maxTags)
	}
	return tags, nil
}

// detectContentType trusts a declared type unless it is missing or generic,
// then falls back to the extension and finally to sniffing the bytes.
func detectContentType(name, declared string, content []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	if t, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return sniffed
}

func validatePosition(p models.AnnotationPosition) error {
	if p.Page < 1 {
		return apperr.Invalid("position.page must be at least 1")
	}
	if p.X < 0 || p.Y < 0 {
		return apperr.Invalid("position coordinates must not be negative")
	}
	if (p.Width != nil && *p.Width <= 0) || (p.Height != nil && *p.Height <= 0) {
		return apperr.Invalid("position width and height must be positive")
	}
	return nil
}
